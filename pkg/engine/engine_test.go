package engine_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/actorkit/pkg/billing"
	"github.com/dmitrymomot/actorkit/pkg/engine"
	"github.com/dmitrymomot/actorkit/pkg/kvstore"
	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/reminder"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()

	e, err := engine.New(context.Background(), engine.Config{StopTimeout: 5 * time.Second},
		engine.WithStore(kvstore.NewMemoryStore()),
		engine.WithRegistry(prometheus.NewRegistry()),
		engine.WithLogger(discard),
	)
	require.NoError(t, err)
	return e
}

type subscription = lifecycle.Entity[billing.Subscription]

func call(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, &buf))
	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := engine.New(context.Background(), engine.Config{Backend: "etcd"},
		engine.WithRegistry(prometheus.NewRegistry()),
		engine.WithLogger(discard),
	)
	require.ErrorIs(t, err, engine.ErrUnknownBackend)
}

func TestNew_CatalogFileMissing(t *testing.T) {
	t.Parallel()

	_, err := engine.New(context.Background(), engine.Config{Catalog: "/nonexistent/catalog.yaml"},
		engine.WithRegistry(prometheus.NewRegistry()),
		engine.WithLogger(discard),
	)
	require.Error(t, err)
}

func TestNew_RegistersEveryKind(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	assert.ElementsMatch(t, billing.Kinds, e.Runtime().Types())
	assert.NotNil(t, e.Services().Subscriptions)
	assert.NotNil(t, e.Scheduler())
	assert.NotNil(t, e.Store())
}

func TestHandler_Probes(t *testing.T) {
	t.Parallel()

	h := newEngine(t).Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ALIVE", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())
}

func TestHandler_EntityMethods(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	h := e.Handler()
	ctx := context.Background()

	rec := call(t, h, "/actors/subscription/sub-1/method/Create", map[string]any{
		"user_id": "user-1",
		"payload": map[string]any{"plan_id": "basic"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[subscription](t, rec)
	assert.Equal(t, "sub-1", created.ID)
	assert.Equal(t, lifecycle.StatusPending, created.Status)

	rec = call(t, h, "/actors/subscription/sub-1/method/Create", map[string]any{
		"user_id": "user-1",
		"payload": map[string]any{"plan_id": "basic"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(t, h, "/actors/subscription/sub-1/method/Activate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	active := decode[subscription](t, rec)
	assert.Equal(t, lifecycle.StatusActive, active.Status)
	require.NotNil(t, active.EndDate)

	r, err := e.Scheduler().Get(ctx, billing.KindSubscription, "sub-1", lifecycle.DefaultExpiryReminder)
	require.NoError(t, err)
	assert.True(t, r.DueTime.Equal(*active.EndDate))

	rec = call(t, h, "/actors/subscription/sub-1/method/GetData", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, lifecycle.StatusActive, decode[subscription](t, rec).Status)

	rec = get(t, h, "/collections/subscription")
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]subscription](t, rec)
	require.Len(t, listed, 1)
	assert.Equal(t, "sub-1", listed[0].ID)

	rec = get(t, h, "/reminders")
	require.Equal(t, http.StatusOK, rec.Code)
	reminders := decode[[]reminder.Reminder](t, rec)
	require.Len(t, reminders, 1)
	assert.Equal(t, "sub-1", reminders[0].ActorID)

	rec = call(t, h, "/actors/subscription/sub-1/method/HardDelete", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = e.Scheduler().Get(ctx, billing.KindSubscription, "sub-1", lifecycle.DefaultExpiryReminder)
	require.ErrorIs(t, err, reminder.ErrNotFound)
}

func TestHandler_Errors(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	h := e.Handler()

	rec := call(t, h, "/actors/subscription/sub-1/method/Create", map[string]any{
		"user_id": "user-1",
		"payload": map[string]any{"plan_id": "basic"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "unknown kind", path: "/actors/listing/l-1/method/GetData", status: http.StatusNotFound},
		{name: "unknown method", path: "/actors/subscription/sub-1/method/Explode", status: http.StatusNotFound},
		{name: "missing entity", path: "/actors/subscription/missing/method/GetData", status: http.StatusNotFound},
		{name: "invalid payload", path: "/actors/subscription/sub-2/method/Create", body: map[string]any{"user_id": "user-1"}, status: http.StatusBadRequest},
		{name: "malformed body", path: "/actors/subscription/sub-3/method/Create", body: "not an entity", status: http.StatusBadRequest},
		{name: "illegal transition", path: "/actors/subscription/sub-1/method/Resume", status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, h, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec = get(t, h, "/collections/listing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// outageStore fails writes with the configured errors.
type outageStore struct {
	kvstore.Store

	set error
	cas error
}

func (s *outageStore) Set(ctx context.Context, key string, value []byte) error {
	if s.set != nil {
		return s.set
	}
	return s.Store.Set(ctx, key, value)
}

func (s *outageStore) CompareAndSwap(ctx context.Context, key string, value []byte, version string) (string, error) {
	if s.cas != nil {
		return "", s.cas
	}
	return s.Store.CompareAndSwap(ctx, key, value, version)
}

func TestHandler_StoreFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		store *outageStore
	}{
		{
			name:  "store unavailable",
			store: &outageStore{Store: kvstore.NewMemoryStore(), set: errors.Join(kvstore.ErrStoreUnavailable, errors.New("connection refused"))},
		},
		{
			name:  "index never settles",
			store: &outageStore{Store: kvstore.NewMemoryStore(), cas: kvstore.ErrVersionConflict},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, err := engine.New(context.Background(), engine.Config{StopTimeout: 5 * time.Second},
				engine.WithStore(tt.store),
				engine.WithRegistry(prometheus.NewRegistry()),
				engine.WithLogger(discard),
			)
			require.NoError(t, err)

			rec := call(t, e.Handler(), "/actors/subscription/sub-1/method/Create", map[string]any{
				"user_id": "user-1",
				"payload": map[string]any{"plan_id": "basic"},
			})
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestHandler_Metrics(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	h := e.Handler()

	rec := call(t, h, "/actors/payment/pay-1/method/Create", map[string]any{
		"user_id": "user-1",
		"payload": map[string]any{"reference": "ch_1", "amount": "12.50", "currency": "USD"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "actorkit_actor_turns_total"))
}

func TestEngine_ExpiresThroughReminder(t *testing.T) {
	t.Parallel()

	e := newEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	t.Cleanup(func() { _ = e.Stop(context.Background()) })

	subs := e.Services().Subscriptions
	end := time.Now().Add(200 * time.Millisecond)
	_, err := subs.Create(ctx, subscription{
		ID:      "sub-1",
		UserID:  "user-1",
		EndDate: &end,
		Payload: billing.Subscription{PlanID: "basic"},
	})
	require.NoError(t, err)

	active, err := subs.Activate(ctx, "sub-1")
	require.NoError(t, err)
	require.Equal(t, lifecycle.StatusActive, active.Status)

	require.Eventually(t, func() bool {
		got, err := subs.Get(ctx, "sub-1")
		return err == nil && got.Status == lifecycle.StatusExpired
	}, 5*time.Second, 20*time.Millisecond)

	expired, err := subs.ExpiredForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.Eventually(t, func() bool { return e.Scheduler().Armed() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	l, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := engine.Config{StopTimeout: 5 * time.Second}
	cfg.HTTP.Addr = addr
	e, err := engine.New(context.Background(), cfg,
		engine.WithStore(kvstore.NewMemoryStore()),
		engine.WithRegistry(prometheus.NewRegistry()),
		engine.WithLogger(discard),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/healthz", addr))
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}

func TestEngine_WebhookReceivesChanges(t *testing.T) {
	t.Parallel()

	events := make(chan lifecycle.Change, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c lifecycle.Change
		if err := json.NewDecoder(r.Body).Decode(&c); err == nil {
			events <- c
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := engine.Config{StopTimeout: 5 * time.Second}
	cfg.Webhook.URL = srv.URL
	e, err := engine.New(context.Background(), cfg,
		engine.WithStore(kvstore.NewMemoryStore()),
		engine.WithRegistry(prometheus.NewRegistry()),
		engine.WithLogger(discard),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))

	subs := e.Services().Subscriptions
	_, err = subs.Create(ctx, subscription{
		ID:      "sub-hook",
		UserID:  "user-1",
		Payload: billing.Subscription{PlanID: "basic"},
	})
	require.NoError(t, err)
	_, err = subs.Activate(ctx, "sub-hook")
	require.NoError(t, err)

	require.NoError(t, e.Stop(ctx))

	var activated bool
	for len(events) > 0 {
		c := <-events
		assert.Equal(t, "sub-hook", c.EntityID)
		if c.Event == lifecycle.EventActivate && c.To == lifecycle.StatusActive {
			activated = true
		}
	}
	assert.True(t, activated)
}
