package notify_test

import (
	"context"
	"encoding/json"
	"flagwatch/backend/internal/models"
	"flagwatch/backend/internal/notify"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSink_PostsEmbed(t *testing.T) {
	var got discordgo.WebhookParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink("high", srv.URL, time.Second, quietLogger())
	err := sink.Send(context.Background(), notify.Alert{Channel: notify.ChannelHigh, Event: flagged(models.RiskHigh, "1")})

	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	assert.Contains(t, got.Embeds[0].Title, "Flagged Message")
}

func TestWebhookSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink("low", srv.URL, time.Second, quietLogger())
	err := sink.Send(context.Background(), notify.Alert{Channel: notify.ChannelLow, Event: flagged(models.RiskLow, "1")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestWebhookSink_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := notify.NewWebhookSink("medium", srv.URL, time.Second, quietLogger())
	alert := notify.Alert{Channel: notify.ChannelMedium, Event: flagged(models.RiskMedium, "1")}
	for i := 0; i < 8; i++ {
		assert.Error(t, sink.Send(context.Background(), alert))
	}

	assert.Equal(t, int32(5), calls.Load(), "open breaker short-circuits further posts")
}

func TestNewWebhookSink_EmptyURL(t *testing.T) {
	assert.Nil(t, notify.NewWebhookSink("low", "", time.Second, quietLogger()))
}
