package bolt_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap/zaptest"

	"github.com/influxdata/kvquery/bolt"
)

func TestNewConfig(t *testing.T) {
	want := bolt.Config{
		Path:    filepath.Join("/var/lib/kvquery", "kvquery.bolt"),
		Timeout: time.Second,
	}
	if diff := cmp.Diff(want, bolt.NewConfig("/var/lib/kvquery")); diff != "" {
		t.Fatalf("unexpected config -want/+got:\n%s", diff)
	}
}

func TestConfig_DecodeTOML(t *testing.T) {
	config := bolt.NewConfig("/tmp")
	_, err := toml.Decode(`
path = "/data/hosts.bolt"
no-sync = true
`, &config)
	require.NoError(t, err)

	want := bolt.Config{
		Path:    "/data/hosts.bolt",
		Timeout: time.Second,
		NoSync:  true,
	}
	if diff := cmp.Diff(want, config); diff != "" {
		t.Fatalf("unexpected config -want/+got:\n%s", diff)
	}
}

func TestConfig_Timeout(t *testing.T) {
	ctx := context.Background()
	config := bolt.NewConfig(t.TempDir())
	config.Timeout = 50 * time.Millisecond

	first := bolt.NewKVStore(zaptest.NewLogger(t), config)
	require.NoError(t, first.Open(ctx))
	defer first.Close()

	second := bolt.NewKVStore(zaptest.NewLogger(t), config)
	err := second.Open(ctx)
	require.ErrorIs(t, err, bbolt.ErrTimeout)
}
