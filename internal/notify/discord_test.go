package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedcore/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestDiscordSinkPostsEmbedPayload(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewDiscordSink(srv.URL, 2*time.Second)
	err := sink.Send(context.Background(), Event{Node: domain.NodeID("n1"), Title: "Example Feed", Delta: 3, Time: time.Now()})
	require.NoError(t, err)

	require.Equal(t, "discord", sink.Name())
	require.Len(t, got.Embeds, 1)
	require.Equal(t, "3 new item(s) in Example Feed", got.Embeds[0].Title)
	require.Equal(t, discordEmbedColor, got.Embeds[0].Color)
}

func TestDiscordSinkRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewDiscordSink(srv.URL, 2*time.Second)
	err := sink.Send(context.Background(), Event{Node: domain.NodeID("n1"), Delta: 1, Time: time.Now()})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestDiscordSinkDoesNotRetryClientError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewDiscordSink(srv.URL, 2*time.Second)
	err := sink.Send(context.Background(), Event{Node: domain.NodeID("n1"), Delta: 1, Time: time.Now()})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
