// Package netsafety validates user-supplied outbound URLs before the
// daemon dials them, guarding every user-configured egress endpoint
// feedctl calls out to: a notification webhook, a remote node source's
// base URL.
package netsafety

import (
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrInvalidURL is returned for a malformed URL or a disallowed scheme.
var ErrInvalidURL = errors.New("netsafety: invalid URL")

// ErrPrivateAddress is returned when a hostname resolves to a private,
// loopback, or link-local address and denyPrivateAddresses was set.
var ErrPrivateAddress = errors.New("netsafety: resolves to a private address")

// ValidateURL checks urlStr for a safe scheme and, when
// denyPrivateAddresses is true, resolves its hostname and rejects any
// loopback/private/link-local result: user-supplied endpoints are
// external by construction, and the daemon must not let one point back
// at itself or the local network.
func ValidateURL(urlStr string, denyPrivateAddresses bool) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: empty hostname", ErrInvalidURL)
	}
	if !denyPrivateAddresses {
		return nil
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %v", ErrInvalidURL, hostname, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, hostname, ip)
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()
}
