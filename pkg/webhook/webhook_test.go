package webhook_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/webhook"
)

func testChange() lifecycle.Change {
	return lifecycle.Change{
		EntityID: "sub-1",
		Kind:     "subscription",
		UserID:   "user-1",
		From:     lifecycle.StatusPending,
		To:       lifecycle.StatusActive,
		Event:    lifecycle.EventActivate,
		At:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "ftp://example.com", "http://", "::bad"} {
		_, err := webhook.New(webhook.Config{URL: raw})
		require.ErrorIs(t, err, webhook.ErrInvalidConfiguration, raw)
	}
}

func TestNotifier_DeliversSignedChange(t *testing.T) {
	t.Parallel()

	const secret = "s3cret"
	received := make(chan lifecycle.Change, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil || webhook.Verify(secret, body, r.Header, time.Minute) != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var c lifecycle.Change
		if json.Unmarshal(body, &c) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		received <- c
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	n, err := webhook.New(webhook.Config{URL: srv.URL, Secret: secret, QueueSize: 4})
	require.NoError(t, err)
	n.Start()

	require.NoError(t, n.Notify(context.Background(), testChange()))

	select {
	case c := <-received:
		assert.Equal(t, testChange(), c)
	case <-time.After(5 * time.Second):
		t.Fatal("change was not delivered")
	}
	require.NoError(t, n.Stop(context.Background()))
	assert.ErrorIs(t, n.Notify(context.Background(), testChange()), webhook.ErrClosed)
}

func TestNotifier_Retries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   func(call int32) int
		wantHits int32
	}{
		{"recovers after server errors", func(call int32) int {
			if call < 3 {
				return http.StatusBadGateway
			}
			return http.StatusOK
		}, 3},
		{"stops on client error", func(int32) int { return http.StatusBadRequest }, 1},
		{"gives up after max retries", func(int32) int { return http.StatusServiceUnavailable }, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status(hits.Add(1)))
			}))
			t.Cleanup(srv.Close)

			n, err := webhook.New(webhook.Config{
				URL:        srv.URL,
				MaxRetries: 2,
				RetryDelay: time.Millisecond,
				MaxDelay:   5 * time.Millisecond,
			})
			require.NoError(t, err)
			n.Start()
			require.NoError(t, n.Notify(context.Background(), testChange()))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, n.Stop(ctx))
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestNotifier_QueueFull(t *testing.T) {
	t.Parallel()

	n, err := webhook.New(webhook.Config{URL: "http://127.0.0.1:1", QueueSize: 1})
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), testChange()))
	assert.ErrorIs(t, n.Notify(context.Background(), testChange()), webhook.ErrQueueFull)
	require.NoError(t, n.Stop(context.Background()))
}

func TestVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"entity_id":"sub-1"}`)
	now := time.Now().Unix()
	headers := func(ts int64, sig string) http.Header {
		h := http.Header{}
		h.Set(webhook.HeaderTimestamp, strconv.FormatInt(ts, 10))
		if sig != "" {
			h.Set(webhook.HeaderSignature, sig)
		}
		return h
	}

	tests := []struct {
		name    string
		secret  string
		payload []byte
		header  http.Header
		wantErr error
	}{
		{"valid", "k", payload, headers(now, webhook.Sign("k", now, payload)), nil},
		{"wrong secret", "other", payload, headers(now, webhook.Sign("k", now, payload)), webhook.ErrInvalidSignature},
		{"tampered payload", "k", []byte(`{}`), headers(now, webhook.Sign("k", now, payload)), webhook.ErrInvalidSignature},
		{"missing signature", "k", payload, headers(now, ""), webhook.ErrInvalidSignature},
		{"too old", "k", payload, headers(now-3600, webhook.Sign("k", now-3600, payload)), webhook.ErrInvalidSignature},
		{"no secret", "", payload, headers(now, "x"), webhook.ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := webhook.Verify(tt.secret, tt.payload, tt.header, time.Minute)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
