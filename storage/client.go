// Package storage provides the store client used by the query planner. It
// owns the session to the store and transparently reopens it once when a
// call fails because the session broke.
package storage

import (
	"context"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kit/tracing"
)

var _ kvquery.Store = (*Client)(nil)

// Session is an open connection to a store.
type Session interface {
	kvquery.Store
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context) (Session, error)

// Dial calls fn.
func (fn DialerFunc) Dial(ctx context.Context) (Session, error) {
	return fn(ctx)
}

// Client is a kvquery.Store that forwards each call to the current session.
//
// When a call fails with a transport error the session is closed, a new one
// is dialed and the call is retried exactly once. Concurrent callers that
// fail on the same session share a single reopen. A transport failure of the
// retry surfaces as EStoreConnection; any other failure as EStoreAccess.
type Client struct {
	dialer Dialer
	config Config
	log    *zap.Logger

	mu      sync.Mutex
	session Session
	gen     uint64

	metrics *clientMetrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger of the client.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithConfig sets the config of the client.
func WithConfig(config Config) ClientOption {
	return func(c *Client) {
		c.config = config
	}
}

// NewClient returns a Client dialing sessions with d. No session is opened
// until Open or the first call.
func NewClient(d Dialer, opts ...ClientOption) *Client {
	c := &Client{
		dialer:  d,
		config:  NewConfig(),
		log:     zap.NewNop(),
		metrics: newClientMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open dials the first session.
func (c *Client) Open(ctx context.Context) error {
	if _, _, err := c.current(ctx); err != nil {
		return connectionError("storage/Open", err)
	}
	return nil
}

// Close closes the current session, and the dialer when it holds resources
// of its own.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.session != nil {
		err = multierr.Append(err, c.session.Close())
		c.session = nil
	}
	if closer, ok := c.dialer.(io.Closer); ok {
		err = multierr.Append(err, closer.Close())
	}
	return err
}

func (c *Client) dial(ctx context.Context) (Session, error) {
	if c.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}
	return c.dialer.Dial(ctx)
}

// current returns the open session and its generation, dialing one when
// there is none.
func (c *Client) current(ctx context.Context) (Session, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		s, err := c.dial(ctx)
		if err != nil {
			return nil, c.gen, err
		}
		c.session = s
		c.gen++
	}
	return c.session, c.gen, nil
}

// reconnect replaces the session of generation gen. If another caller has
// already replaced it the newer session is returned as is.
func (c *Client) reconnect(ctx context.Context, gen uint64) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen && c.session != nil {
		return c.session, nil
	}

	if c.session != nil {
		if err := c.session.Close(); err != nil {
			c.log.Warn("Failed to close broken session", zap.Error(err))
		}
		c.session = nil
	}

	s, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.session = s
	c.gen++
	c.metrics.reconnects.Inc()
	c.log.Info("Reopened store session", zap.Uint64("generation", c.gen))
	return s, nil
}

// do runs fn against the current session with a single reconnect and retry
// on transport failure.
func (c *Client) do(ctx context.Context, op string, fn func(context.Context, Session) error) error {
	span, ctx := tracing.StartSpanFromContextWithOperationName(ctx, "storage."+op)
	defer span.Finish()

	s, gen, err := c.current(ctx)
	if err == nil {
		if err = fn(ctx, s); err == nil {
			c.metrics.calls.WithLabelValues(op, resultSuccess).Inc()
			return nil
		}
	}

	if !IsTransport(err) {
		c.metrics.calls.WithLabelValues(op, resultAccess).Inc()
		return tracing.LogError(span, accessError("storage/"+op, err))
	}

	c.log.Warn("Store call failed, reconnecting",
		zap.String("op", op),
		zap.Error(err))

	s, err = c.reconnect(ctx, gen)
	if err != nil {
		c.metrics.calls.WithLabelValues(op, resultConnection).Inc()
		return tracing.LogError(span, connectionError("storage/"+op, err))
	}

	if err = fn(ctx, s); err != nil {
		if IsTransport(err) {
			c.metrics.calls.WithLabelValues(op, resultConnection).Inc()
			return tracing.LogError(span, connectionError("storage/"+op, err))
		}
		c.metrics.calls.WithLabelValues(op, resultAccess).Inc()
		return tracing.LogError(span, accessError("storage/"+op, err))
	}

	c.metrics.calls.WithLabelValues(op, resultRetried).Inc()
	return nil
}

// ScanRange implements kvquery.Store.
func (c *Client) ScanRange(ctx context.Context, cf string, r kvquery.KeyRange, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	var out []kvquery.KeySlice
	err := c.do(ctx, "ScanRange", func(ctx context.Context, s Session) (err error) {
		out, err = s.ScanRange(ctx, cf, r, limits)
		return err
	})
	return out, err
}

// GetPoint implements kvquery.Store.
func (c *Client) GetPoint(ctx context.Context, cf string, key string, maxColumns int) (kvquery.KeySlice, bool, error) {
	var (
		out   kvquery.KeySlice
		found bool
	)
	err := c.do(ctx, "GetPoint", func(ctx context.Context, s Session) (err error) {
		out, found, err = s.GetPoint(ctx, cf, key, maxColumns)
		return err
	})
	return out, found, err
}

// ScanIndex implements kvquery.Store.
func (c *Client) ScanIndex(ctx context.Context, cf, column, value string, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	var out []kvquery.KeySlice
	err := c.do(ctx, "ScanIndex", func(ctx context.Context, s Session) (err error) {
		out, err = s.ScanIndex(ctx, cf, column, value, limits)
		return err
	})
	return out, err
}

// ScanAll implements kvquery.Store.
func (c *Client) ScanAll(ctx context.Context, cf string, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	var out []kvquery.KeySlice
	err := c.do(ctx, "ScanAll", func(ctx context.Context, s Session) (err error) {
		out, err = s.ScanAll(ctx, cf, limits)
		return err
	})
	return out, err
}

// Write implements kvquery.Store.
func (c *Client) Write(ctx context.Context, cf string, mutations []kvquery.Mutation, ts uint64) error {
	return c.do(ctx, "Write", func(ctx context.Context, s Session) error {
		return s.Write(ctx, cf, mutations, ts)
	})
}

// Delete implements kvquery.Store.
func (c *Client) Delete(ctx context.Context, cf string, keys []string, ts uint64) error {
	return c.do(ctx, "Delete", func(ctx context.Context, s Session) error {
		return s.Delete(ctx, cf, keys, ts)
	})
}
