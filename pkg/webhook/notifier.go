package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/actorkit/pkg/lifecycle"
	"github.com/dmitrymomot/actorkit/pkg/logger"
)

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client. Its timeout is left as is.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.client = c
		}
	}
}

// Notifier posts lifecycle changes to a webhook endpoint from a background worker.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	queue   chan lifecycle.Change
	done    chan struct{}
	cancel  context.CancelFunc
}

var _ lifecycle.Notifier = (*Notifier)(nil)

// New validates cfg and returns an idle Notifier.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: url %q", ErrInvalidConfiguration, cfg.URL)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	n := &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.New(slog.DiscardHandler),
		queue:  make(chan lifecycle.Change, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify enqueues change without blocking.
func (n *Notifier) Notify(_ context.Context, change lifecycle.Change) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}
	select {
	case n.queue <- change:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the delivery worker. Calling it twice is a no-op.
func (n *Notifier) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started || n.closed {
		return
	}
	n.started = true

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go n.run(ctx)
}

// Stop refuses new changes and waits for the queue to drain. When ctx ends
// first, pending deliveries are abandoned.
func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	started := n.started
	n.mu.Unlock()

	if !started {
		return nil
	}
	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	defer n.cancel()
	for change := range n.queue {
		if ctx.Err() != nil {
			continue
		}
		if err := n.deliver(ctx, change); err != nil {
			n.logger.ErrorContext(ctx, "webhook delivery failed",
				logger.Kind(change.Kind),
				logger.ActorID(change.EntityID),
				logger.Transition(string(change.From), string(change.To), string(change.Event)),
				logger.Error(err),
			)
		}
	}
}

// deliver posts change, retrying temporary failures up to MaxRetries times.
func (n *Notifier) deliver(ctx context.Context, change lifecycle.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	id := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(lastErr, ctx.Err())
			case <-time.After(n.backoff(attempt)):
			}
		}
		lastErr = n.post(ctx, id, string(change.Event), payload)
		if lastErr == nil || errors.Is(lastErr, ErrPermanentFailure) {
			return lastErr
		}
		n.logger.WarnContext(ctx, "webhook attempt failed",
			logger.ActorID(change.EntityID),
			logger.Attempt(attempt+1),
			logger.Error(lastErr),
		)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, n.cfg.MaxRetries+1, lastErr)
}

func (n *Notifier) post(ctx context.Context, id, event string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return errors.Join(ErrPermanentFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderID, id)
	req.Header.Set(HeaderEvent, event)
	if n.cfg.Secret != "" {
		ts := time.Now().Unix()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, Sign(n.cfg.Secret, ts, payload))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %d", ErrPermanentFailure, resp.StatusCode)
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}

func (n *Notifier) backoff(attempt int) time.Duration {
	d := n.cfg.RetryDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	d <<= attempt - 1
	if n.cfg.MaxDelay > 0 && (d > n.cfg.MaxDelay || d <= 0) {
		d = n.cfg.MaxDelay
	}
	return d
}
