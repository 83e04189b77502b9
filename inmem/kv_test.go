package inmem_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/influxdata/kvquery/inmem"
	"github.com/influxdata/kvquery/kv"
)

func seed(t *testing.T, s *inmem.KVStore, keys ...string) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Put([]byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func walk(t *testing.T, s *inmem.KVStore, seek []byte, opts ...kv.CursorOption) []string {
	t.Helper()
	var got []string
	require.NoError(t, s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		cur, err := b.ForwardCursor(seek, opts...)
		if err != nil {
			return err
		}
		return kv.WalkCursor(context.Background(), cur, func(k, v []byte) (bool, error) {
			assert.Equal(t, "v"+string(k), string(v))
			got = append(got, string(k))
			return true, nil
		})
	}))
	return got
}

func TestForwardCursor(t *testing.T) {
	s := inmem.NewKVStore()
	seed(t, s, "a", "aa", "ab", "b", "ba", "c")

	tests := []struct {
		name string
		seek []byte
		opts []kv.CursorOption
		exp  []string
	}{
		{name: "all", exp: []string{"a", "aa", "ab", "b", "ba", "c"}},
		{name: "seek", seek: []byte("ab"), exp: []string{"ab", "b", "ba", "c"}},
		{name: "seek between keys", seek: []byte("az"), exp: []string{"b", "ba", "c"}},
		{name: "prefix", seek: []byte("a"), opts: []kv.CursorOption{kv.WithCursorPrefix([]byte("a"))}, exp: []string{"a", "aa", "ab"}},
		{name: "prefix before seek", opts: []kv.CursorOption{kv.WithCursorPrefix([]byte("b"))}, exp: []string{"b", "ba"}},
		{name: "stop inclusive", seek: []byte("aa"), opts: []kv.CursorOption{kv.WithCursorStop([]byte("b"))}, exp: []string{"aa", "ab", "b"}},
		{name: "past end", seek: []byte("d")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exp, walk(t, s, tt.seek, tt.opts...))
		})
	}
}

func TestReadOnlyTx(t *testing.T) {
	s := inmem.NewKVStore()
	seed(t, s, "a")

	err := s.View(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		return b.Put([]byte("x"), []byte("y"))
	})
	assert.Equal(t, kv.ErrTxNotWritable, err)

	err = s.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("missing"))
		return err
	})
	assert.Equal(t, kv.ErrTxNotWritable, err)

	s.Flush(context.Background())
	assert.Empty(t, walk(t, s, nil))
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := inmem.NewKVStore()
	seed(t, s, "a")

	errBoom := errors.New("boom")
	err := s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		if err := b.Put([]byte("x"), []byte("vx")); err != nil {
			return err
		}
		if err := b.Delete([]byte("a")); err != nil {
			return err
		}
		if _, err := tx.Bucket([]byte("other")); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)
	assert.Equal(t, []string{"a"}, walk(t, s, nil))

	err = s.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.Bucket([]byte("other"))
		return err
	})
	assert.Equal(t, kv.ErrTxNotWritable, err)
}

func TestForwardCursor_WritesBetweenCalls(t *testing.T) {
	s := inmem.NewKVStore()
	seed(t, s, "a", "c")

	var got []string
	require.NoError(t, s.Update(context.Background(), func(tx kv.Tx) error {
		b, err := tx.Bucket([]byte("b"))
		if err != nil {
			return err
		}
		cur, err := b.ForwardCursor(nil)
		if err != nil {
			return err
		}
		k, _ := cur.Next()
		got = append(got, string(k))
		if err := b.Put([]byte("b"), []byte("vb")); err != nil {
			return err
		}
		for k, _ := cur.Next(); k != nil; k, _ = cur.Next() {
			got = append(got, string(k))
		}
		return cur.Close()
	}))
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
