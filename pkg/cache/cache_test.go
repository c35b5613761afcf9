package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
	"github.com/matzehuels/jarprobe/pkg/observability"
)

const testHash = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

func publicEntry(version string) Entry {
	return Entry{
		Coordinate: gav.New("org.slf4j", "slf4j-api", version),
		Repository: "https://repo1.maven.org/maven2/",
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewNullStore()
	defer s.Close()

	stored, err := s.Put(ctx, testHash, publicEntry("2.0.9"))
	require.NoError(t, err)
	assert.False(t, stored)

	_, hit, err := s.Get(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, hit, "NullStore should not store data")
}

func TestEntryValidate(t *testing.T) {
	assert.NoError(t, publicEntry("1.0").Validate())
	assert.NoError(t, PrivateEntry(gav.Coordinate{}).Validate())
	assert.Error(t, Entry{Coordinate: gav.New("g", "a", "")}.Validate())
	assert.Error(t, Entry{Coordinate: gav.New("g", "a", "1")}.Validate())
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, hit, err := s.Get(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, hit)

	stored, err := s.Put(ctx, testHash, publicEntry("2.0.9"))
	require.NoError(t, err)
	assert.True(t, stored)

	got, hit, err := s.Get(ctx, testHash)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, publicEntry("2.0.9"), got)

	_, err = os.Stat(filepath.Join(s.Dir(), testHash[:2], testHash[2:]+".json"))
	assert.NoError(t, err)
}

func TestFileStore_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	const writers = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := s.Put(ctx, testHash, publicEntry("1."+string(rune('a'+i))))
			assert.NoError(t, err)
			if stored {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	first, hit, err := s.Get(ctx, testHash)
	require.NoError(t, err)
	require.True(t, hit)

	stored, err := s.Put(ctx, testHash, publicEntry("9.9"))
	require.NoError(t, err)
	assert.False(t, stored)
	again, _, _ := s.Get(ctx, testHash)
	assert.Equal(t, first, again)
}

func TestFileStore_SchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, schemaFile),
		[]byte(`{"version":0,"fields":["hash","coordinate"]}`), 0o644))

	_, err := NewFileStore(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSchemaMismatch))
	assert.True(t, errors.IsFatal(err))
}

func TestFileStore_ReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	_, err = s.Put(ctx, testHash, PrivateEntry(gav.New("com.acme", "core", "1.0")))
	require.NoError(t, err)

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	got, hit, err := s2.Get(ctx, testHash)
	require.NoError(t, err)
	require.True(t, hit)
	assert.True(t, got.Private)
}

func TestFileStore_RejectsBadHash(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, _, err = s.Get(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
	_, err = s.Put(context.Background(), "zz", publicEntry("1"))
	assert.Error(t, err)
}

type countingStore struct {
	Store
	gets atomic.Int32
}

func (c *countingStore) Get(ctx context.Context, hash string) (Entry, bool, error) {
	c.gets.Add(1)
	return c.Store.Get(ctx, hash)
}

func TestMemo(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	inner := &countingStore{Store: fs}

	m, err := NewMemo(inner, 0)
	require.NoError(t, err)
	defer m.Close()

	_, hit, err := m.Get(ctx, testHash)
	require.NoError(t, err)
	assert.False(t, hit)

	stored, err := m.Put(ctx, testHash, publicEntry("1.0"))
	require.NoError(t, err)
	require.True(t, stored)

	for range 5 {
		got, hit, err := m.Get(ctx, testHash)
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, publicEntry("1.0"), got)
	}
	assert.Equal(t, int32(1), inner.gets.Load(), "hits after Put must be served from memory")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "null:")
	require.NoError(t, err)
	assert.IsType(t, &NullStore{}, s)

	dir := t.TempDir()
	s, err = Open(ctx, dir)
	require.NoError(t, err)
	_, err = s.Put(ctx, testHash, publicEntry("1.0"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, "file://"+dir)
	require.NoError(t, err)
	_, hit, err := s.Get(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, hit)

	_, err = Open(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
	_, err = Open(ctx, "cassandra://localhost")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

type recordingCacheHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets atomic.Int32
}

func (r *recordingCacheHooks) OnCacheHit(context.Context, string)       { r.hits.Add(1) }
func (r *recordingCacheHooks) OnCacheMiss(context.Context, string)      { r.misses.Add(1) }
func (r *recordingCacheHooks) OnCacheSet(context.Context, string, bool) { r.sets.Add(1) }

func TestInstrument(t *testing.T) {
	t.Cleanup(observability.Reset)
	hooks := &recordingCacheHooks{}
	observability.SetCacheHooks(hooks)

	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	s := Instrument(fs, "file")

	_, _, _ = s.Get(ctx, testHash)
	_, _ = s.Put(ctx, testHash, publicEntry("1.0"))
	_, _, _ = s.Get(ctx, testHash)

	assert.Equal(t, int32(1), hooks.misses.Load())
	assert.Equal(t, int32(1), hooks.sets.Load())
	assert.Equal(t, int32(1), hooks.hits.Load())
}
