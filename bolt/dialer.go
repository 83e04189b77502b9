package bolt

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/influxdata/kvquery"
	"github.com/influxdata/kvquery/kv"
	"github.com/influxdata/kvquery/storage"
)

var (
	_ storage.Dialer       = (*Dialer)(nil)
	_ prometheus.Collector = (*Dialer)(nil)
)

// Session is a kv.Service over an open boltdb file.
type Session struct {
	*kv.Service
	store *KVStore
}

// Close releases the database file.
func (s *Session) Close() error {
	return s.store.Close()
}

// Dialer opens sessions on a boltdb file holding the configured column
// families. It collects the metrics of whichever session it opened last.
type Dialer struct {
	Config   Config
	Families []kvquery.ColumnFamily
	Logger   *zap.Logger

	mu      sync.Mutex
	current *KVStore
}

// Dial opens the database file and creates any missing column family and
// index buckets.
func (d *Dialer) Dial(ctx context.Context) (storage.Session, error) {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	store := NewKVStore(log.With(zap.String("service", "bolt")), d.Config)
	if err := store.Open(ctx); err != nil {
		return nil, err
	}

	svc := kv.NewService(log.With(zap.String("service", "kv")), store, d.Families...)
	if err := svc.Initialize(ctx); err != nil {
		return nil, multierr.Append(err, store.Close())
	}

	d.mu.Lock()
	d.current = store
	d.mu.Unlock()

	return &Session{Service: svc, store: store}, nil
}

func (d *Dialer) store() *KVStore {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Describe implements prometheus.Collector.
func (d *Dialer) Describe(ch chan<- *prometheus.Desc) {
	(*KVStore)(nil).Describe(ch)
}

// Collect implements prometheus.Collector.
func (d *Dialer) Collect(ch chan<- prometheus.Metric) {
	if s := d.store(); s != nil {
		s.Collect(ch)
	}
}
