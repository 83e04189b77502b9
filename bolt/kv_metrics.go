package bolt

import (
	"github.com/prometheus/client_golang/prometheus"
	bolt "go.etcd.io/bbolt"
)

var _ prometheus.Collector = (*KVStore)(nil)

var (
	kvWritesDesc = prometheus.NewDesc(
		"boltdb_writes_total",
		"Total number of boltdb writes",
		nil, nil)

	kvReadsDesc = prometheus.NewDesc(
		"boltdb_reads_total",
		"Total number of boltdb read transactions",
		nil, nil)

	kvKeysDesc = prometheus.NewDesc(
		"boltdb_keys",
		"Number of keys held in each boltdb bucket",
		[]string{"bucket"}, nil)

	kvSizeDesc = prometheus.NewDesc(
		"boltdb_size_bytes",
		"Size of the boltdb file as seen by the last read transaction",
		nil, nil)
)

// Describe implements prometheus.Collector.
func (s *KVStore) Describe(ch chan<- *prometheus.Desc) {
	ch <- kvWritesDesc
	ch <- kvReadsDesc
	ch <- kvKeysDesc
	ch <- kvSizeDesc
}

// Collect implements prometheus.Collector. A store that was never opened
// reports nothing; a closed one reports only its transaction counters.
func (s *KVStore) Collect(ch chan<- prometheus.Metric) {
	if s.db == nil {
		return
	}

	stats := s.db.Stats()
	ch <- prometheus.MustNewConstMetric(kvReadsDesc, prometheus.CounterValue, float64(stats.TxN))
	ch <- prometheus.MustNewConstMetric(kvWritesDesc, prometheus.CounterValue, float64(stats.TxStats.Write))

	_ = s.db.View(func(tx *bolt.Tx) error {
		ch <- prometheus.MustNewConstMetric(kvSizeDesc, prometheus.GaugeValue, float64(tx.Size()))
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			ch <- prometheus.MustNewConstMetric(kvKeysDesc, prometheus.GaugeValue, float64(b.Stats().KeyN), string(name))
			return nil
		})
	})
}
