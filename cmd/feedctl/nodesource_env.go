package main

import (
	"fmt"
	"os"
	"strings"

	"feedcore/internal/netsafety"
	"feedcore/internal/nodesource"
)

// nodeSourceEnvConfig builds the endpoint table and credentials for a
// remote node source from environment variables keyed by providerID,
// e.g. FEEDCTL_NODESOURCE_FEEDHQ_BASE_URL for a provider with id
// "feedhq". Endpoint paths follow the conventional Google-Reader API
// layout.
func nodeSourceEnvConfig(providerID string) (nodesource.EndpointTable, nodesource.Credentials, error) {
	prefix := "FEEDCTL_NODESOURCE_" + strings.ToUpper(providerID) + "_"

	baseURL := os.Getenv(prefix + "BASE_URL")
	if baseURL == "" {
		return nodesource.EndpointTable{}, nodesource.Credentials{}, fmt.Errorf("missing %sBASE_URL", prefix)
	}
	if err := netsafety.ValidateURL(baseURL, true); err != nil {
		return nodesource.EndpointTable{}, nodesource.Credentials{}, fmt.Errorf("%sBASE_URL: %w", prefix, err)
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	username := os.Getenv(prefix + "USERNAME")
	password := os.Getenv(prefix + "PASSWORD")
	if username == "" || password == "" {
		return nodesource.EndpointTable{}, nodesource.Credentials{}, fmt.Errorf("missing %sUSERNAME or %sPASSWORD", prefix, prefix)
	}

	const api = "/reader/api/0"
	endpoints := nodesource.EndpointTable{
		Login:                  baseURL + "/accounts/ClientLogin",
		LoginPost:              baseURL + "/accounts/ClientLogin",
		UnreadCount:            baseURL + api + "/unread-count",
		SubscriptionList:       baseURL + api + "/subscription/list",
		AddSubscription:        baseURL + api + "/subscription/edit",
		AddSubscriptionPost:    baseURL + api + "/subscription/edit",
		RemoveSubscription:     baseURL + api + "/subscription/edit",
		RemoveSubscriptionPost: baseURL + api + "/subscription/edit",
		EditTag:                baseURL + api + "/edit-tag",
		EditTagAddPost:         baseURL + api + "/edit-tag",
		EditTagARTagPost:       baseURL + api + "/edit-tag",
		EditTagRemovePost:      baseURL + api + "/edit-tag",
		EditLabel:              baseURL + api + "/subscription/edit",
		EditAddLabelPost:       baseURL + api + "/subscription/edit",
		EditRemoveLabelPost:    baseURL + api + "/subscription/edit",
		Token:                  baseURL + api + "/token",
	}
	creds := nodesource.Credentials{Username: username, Password: password}
	return endpoints, creds, nil
}
