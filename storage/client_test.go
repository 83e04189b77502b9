package storage_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/inmem"
	"github.com/influxdata/kvquery/kit/platform/errors"
	tracetest "github.com/influxdata/kvquery/kit/tracing/testing"
	"github.com/influxdata/kvquery/kv"
	"github.com/influxdata/kvquery/storage"
)

var hosts = kvquery.ColumnFamily{
	Name:     "hosts",
	PKColumn: "id",
	Indexed:  []string{"ip"},
}

// flakySession forwards to a kv.Service after consulting fail.
type flakySession struct {
	kvquery.Store
	id     int
	fail   func(id int) error
	closed atomic.Bool
}

func (s *flakySession) check() error {
	if s.closed.Load() {
		return fmt.Errorf("session %d: %w", s.id, storage.ErrTransport)
	}
	if s.fail != nil {
		return s.fail(s.id)
	}
	return nil
}

func (s *flakySession) ScanAll(ctx context.Context, cf string, limits kvquery.ScanLimits) ([]kvquery.KeySlice, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.Store.ScanAll(ctx, cf, limits)
}

func (s *flakySession) Write(ctx context.Context, cf string, mutations []kvquery.Mutation, ts uint64) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.Store.Write(ctx, cf, mutations, ts)
}

func (s *flakySession) Close() error {
	s.closed.Store(true)
	return nil
}

// flakyDialer hands out sessions over one shared in-memory store.
type flakyDialer struct {
	svc  *kv.Service
	fail func(id int) error

	mu       sync.Mutex
	dials    int
	dialErrs []error
}

func newFlakyDialer(t *testing.T, fail func(id int) error) *flakyDialer {
	t.Helper()
	svc := kv.NewService(zaptest.NewLogger(t), inmem.NewKVStore(), hosts)
	require.NoError(t, svc.Initialize(context.Background()))
	return &flakyDialer{svc: svc, fail: fail}
}

func (d *flakyDialer) Dial(ctx context.Context) (storage.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.dialErrs) > 0 {
		err := d.dialErrs[0]
		d.dialErrs = d.dialErrs[1:]
		return nil, err
	}
	return &flakySession{Store: d.svc, id: d.dials, fail: d.fail}, nil
}

func (d *flakyDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func write(t *testing.T, store kvquery.Store, key string) {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), "hosts", []kvquery.Mutation{
		{Key: key, Columns: kvquery.Row{"ip": "10.0.0.1"}},
	}, 1))
}

func TestClient_ReopensOnceOnTransportFailure(t *testing.T) {
	reporter := tracetest.SetupInMemoryTracing(t)

	// The first session is broken, every later one is healthy.
	dialer := newFlakyDialer(t, func(id int) error {
		if id == 1 {
			return syscall.ECONNRESET
		}
		return nil
	})
	write(t, dialer.svc, "h1")

	client := storage.NewClient(dialer, storage.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	slices, err := client.ScanAll(context.Background(), "hosts", kvquery.ScanLimits{})
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.Equal(t, "h1", slices[0].Key)
	assert.Equal(t, 2, dialer.Dials())

	// The new session is kept.
	_, err = client.ScanAll(context.Background(), "hosts", kvquery.ScanLimits{})
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.Dials())

	collectors := client.PrometheusCollectors()
	require.Len(t, collectors, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(collectors[1]))
	assert.Contains(t, tracetest.OperationNames(reporter), "storage.ScanAll")
}

func TestClient_ConnectionErrorAfterRetry(t *testing.T) {
	dialer := newFlakyDialer(t, func(int) error {
		return fmt.Errorf("read: %w", storage.ErrTransport)
	})
	client := storage.NewClient(dialer, storage.WithLogger(zaptest.NewLogger(t)))
	defer client.Close()

	err := client.Write(context.Background(), "hosts", []kvquery.Mutation{{Key: "h1", Columns: kvquery.Row{"ip": "x"}}}, 1)
	require.Error(t, err)
	assert.Equal(t, errors.EStoreConnection, errors.ErrorCode(err))
	assert.True(t, stderrors.Is(err, storage.ErrTransport))
	// One dial for the first attempt and one for the single retry.
	assert.Equal(t, 2, dialer.Dials())
}

func TestClient_ConnectionErrorWhenRedialFails(t *testing.T) {
	dialer := newFlakyDialer(t, func(id int) error {
		if id == 1 {
			return storage.ErrTransport
		}
		return nil
	})
	client := storage.NewClient(dialer)
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	dialer.mu.Lock()
	dialer.dialErrs = []error{syscall.ECONNREFUSED}
	dialer.mu.Unlock()

	_, err := client.ScanAll(context.Background(), "hosts", kvquery.ScanLimits{})
	require.Error(t, err)
	assert.Equal(t, errors.EStoreConnection, errors.ErrorCode(err))
}

func TestClient_AccessErrorIsNotRetried(t *testing.T) {
	denied := stderrors.New("permission denied")
	dialer := newFlakyDialer(t, func(int) error { return denied })
	client := storage.NewClient(dialer)
	defer client.Close()

	_, err := client.ScanAll(context.Background(), "hosts", kvquery.ScanLimits{})
	require.Error(t, err)
	assert.Equal(t, errors.EStoreAccess, errors.ErrorCode(err))
	assert.True(t, stderrors.Is(err, denied))
	assert.Equal(t, 1, dialer.Dials())
}

func TestClient_StoreErrorsPassThroughAsAccess(t *testing.T) {
	dialer := newFlakyDialer(t, nil)
	client := storage.NewClient(dialer)
	defer client.Close()

	_, err := client.ScanAll(context.Background(), "nope", kvquery.ScanLimits{})
	require.Error(t, err)
	assert.Equal(t, errors.EStoreAccess, errors.ErrorCode(err))
	assert.Equal(t, 1, dialer.Dials())
}

func TestClient_ConcurrentFailuresShareReopen(t *testing.T) {
	dialer := newFlakyDialer(t, func(id int) error {
		if id == 1 {
			return syscall.EPIPE
		}
		return nil
	})
	write(t, dialer.svc, "h1")

	client := storage.NewClient(dialer)
	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ScanAll(context.Background(), "hosts", kvquery.ScanLimits{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, dialer.Dials())
}

func TestIsTransport(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: stderrors.New("bad request"), want: false},
		{err: context.Canceled, want: false},
		{err: fmt.Errorf("wrapped: %w", context.DeadlineExceeded), want: false},
		{err: storage.ErrTransport, want: true},
		{err: fmt.Errorf("write: %w", syscall.EPIPE), want: true},
		{err: syscall.ECONNREFUSED, want: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, storage.IsTransport(tt.err))
		})
	}
}
