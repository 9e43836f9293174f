package store

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type backend interface {
	get(ctx context.Context, key string) ([]byte, error)
	set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	del(ctx context.Context, key string) error
	ping(ctx context.Context) error
	close() error
}

// Client is the connection owner of the volatile store. It is constructed
// explicitly and shared by every [Store] view; there is no package-level
// instance.
type Client struct {
	opts *options

	mu       sync.Mutex
	state    State
	done     chan struct{}
	backend  backend
	active   string
	attempts int
	closed   bool
}

// NewClient creates a Client in [StateUnattempted]. Nothing is dialed until
// the first operation or an explicit [Client.Connect].
func NewClient(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Client{
		opts:  o,
		state: StateUnattempted,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Addr returns the address of the connected candidate, or "" when not
// connected to Redis.
func (c *Client) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// DialAttempts returns how many candidate dials have been started.
func (c *Client) DialAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect resolves the connection state. The first caller dials the
// candidates in order; concurrent callers wait for it. Once the state is
// terminal Connect returns it immediately without dialing.
//
// Dialing is bounded only by the per-candidate timeout, not by ctx, so one
// cancelled request cannot push the process into fallback. If ctx ends while
// waiting on another caller, the current non-terminal state is returned.
func (c *Client) Connect(ctx context.Context) State {
	c.mu.Lock()
	switch c.state {
	case StateConnected, StateFallback:
		s := c.state
		c.mu.Unlock()
		return s
	case StateConnecting:
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
			return c.State()
		case <-ctx.Done():
			return c.State()
		}
	}

	c.state = StateConnecting
	c.done = make(chan struct{})
	c.mu.Unlock()

	b, addr := c.dialCandidates(context.WithoutCancel(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()

	if b == nil {
		b = newMemoryBackend(c.opts.now, c.opts.cleanupInterval)
		c.state = StateFallback
		c.opts.logger.Warn("volatile store using in-process fallback",
			"candidates", len(c.opts.candidates))
	} else {
		c.state = StateConnected
		c.active = addr
		c.opts.logger.Info("volatile store connected", "addr", addr)
	}
	c.backend = b
	close(c.done)

	if c.closed {
		_ = b.close()
	}

	return c.state
}

type dialResult struct {
	client redis.UniversalClient
	err    error
}

func (c *Client) dialCandidates(ctx context.Context) (backend, string) {
	for _, cand := range c.opts.candidates {
		c.mu.Lock()
		c.attempts++
		c.mu.Unlock()

		client, err := c.dialOne(ctx, cand)
		if err != nil {
			c.opts.logger.Debug("volatile store candidate failed",
				"addr", cand.Addr, "error", err)
			continue
		}
		return &redisBackend{client: client}, cand.Addr
	}
	return nil, ""
}

// dialOne races a single dial against a timer. A dial that finishes after the
// timer fired has its client closed.
func (c *Client) dialOne(ctx context.Context, cand Candidate) (redis.UniversalClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.connectTimeout)
	defer cancel()

	results := make(chan dialResult, 1)
	go func() {
		client, err := c.opts.dialer(dialCtx, cand)
		results <- dialResult{client: client, err: err}
	}()

	timer := time.NewTimer(c.opts.connectTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		return r.client, r.err
	case <-timer.C:
		go discardLate(results)
		return nil, context.DeadlineExceeded
	}
}

func discardLate(results <-chan dialResult) {
	r := <-results
	if r.client != nil {
		_ = r.client.Close()
	}
}

// ready connects if needed and returns the active backend.
func (c *Client) ready(ctx context.Context) (backend, error) {
	c.Connect(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.backend == nil {
		return nil, ErrUnavailable
	}
	return c.backend, nil
}

func (c *Client) get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	return b.get(ctx, key)
}

func (c *Client) set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	b, err := c.ready(ctx)
	if err != nil {
		return err
	}
	return b.set(ctx, key, data, ttl)
}

func (c *Client) del(ctx context.Context, key string) error {
	b, err := c.ready(ctx)
	if err != nil {
		return err
	}
	return b.del(ctx, key)
}

// HealthCheck probes Redis with PING when connected. It does not trigger a
// connect and reports false in any other state, including fallback.
func (c *Client) HealthCheck(ctx context.Context) bool {
	c.mu.Lock()
	b, state, closed := c.backend, c.state, c.closed
	c.mu.Unlock()

	if closed || state != StateConnected || b == nil {
		return false
	}
	return b.ping(ctx) == nil
}

// Close releases the backend. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.backend != nil {
		return c.backend.close()
	}
	return nil
}
