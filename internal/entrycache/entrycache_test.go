package entrycache

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
)

type fakeReader struct {
	entries []archivefmt.Entry
	data    map[string][]byte
	opens   int
}

func (f *fakeReader) Entries() []archivefmt.Entry { return f.entries }
func (f *fakeReader) Open(e archivefmt.Entry) (io.ReadCloser, error) {
	f.opens++
	return io.NopCloser(bytes.NewReader(f.data[e.Name])), nil
}
func (f *fakeReader) Close() error { return nil }

func newFixture(t *testing.T) (*Cache, *fakeReader, catalog.Entry) {
	t.Helper()
	small := []byte("hello world")
	r := &fakeReader{
		entries: []archivefmt.Entry{{Name: "small.txt", Size: int64(len(small)), ModTime: time.Now()}},
		data:    map[string][]byte{"small.txt": small},
	}
	cat := catalog.New(r)
	e, ok := cat.Lookup("/small.txt")
	require.True(t, ok)

	dir := t.TempDir()
	return New(cat, dir), r, e
}

func TestFetchCachesInMemoryOnSecondAccess(t *testing.T) {
	c, r, e := newFixture(t)

	src1, err := c.Fetch("/small.txt", e)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src1.Kind)
	assert.Equal(t, "hello world", string(src1.Data))

	src2, err := c.Fetch("/small.txt", e)
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, src2.Kind)
	assert.Equal(t, 1, r.opens, "second fetch should be served from the memory tier without reopening the decoder")
}

func TestFetchSpillsOversizedEntryToDisk(t *testing.T) {
	big := bytes.Repeat([]byte("x"), 1024)
	r := &fakeReader{
		entries: []archivefmt.Entry{{Name: "big.bin", Size: int64(len(big)), ModTime: time.Now()}},
		data:    map[string][]byte{"big.bin": big},
	}
	cat := catalog.New(r)
	e, ok := cat.Lookup("/big.bin")
	require.True(t, ok)

	dir := t.TempDir()
	c := New(cat, dir)
	c.perEntry = 16 // force this entry over the per-entry limit

	src, err := c.Fetch("/big.bin", e)
	require.NoError(t, err)
	assert.Equal(t, SourceDisk, src.Kind)

	data, err := os.ReadFile(src.FilePath)
	require.NoError(t, err)
	assert.Equal(t, big, data)

	require.NoError(t, c.Close())
	_, err = os.Stat(src.FilePath)
	assert.True(t, os.IsNotExist(err), "Close should remove extracted temp files")
}

func TestReleaseFreesMemoryBudgetAfterLastReference(t *testing.T) {
	c, _, e := newFixture(t)

	src, err := c.Fetch("/small.txt", e)
	require.NoError(t, err)
	require.Equal(t, SourceMemory, src.Kind)

	c.memMu.Lock()
	used := c.memUsed
	c.memMu.Unlock()
	assert.Equal(t, int64(len("hello world")), used)

	c.Release("/small.txt")

	c.memMu.Lock()
	defer c.memMu.Unlock()
	assert.Equal(t, int64(0), c.memUsed, "memory budget must be reclaimed once the last handle releases the entry")
	_, stillCached := c.mem.Get("/small.txt")
	assert.False(t, stillCached, "entry should be evicted once unreferenced")
}

func TestReleaseOnlyFreesAfterAllReferencesDrop(t *testing.T) {
	c, _, e := newFixture(t)

	_, err := c.Fetch("/small.txt", e)
	require.NoError(t, err)
	_, err = c.Fetch("/small.txt", e)
	require.NoError(t, err)

	c.Release("/small.txt")
	c.memMu.Lock()
	used := c.memUsed
	c.memMu.Unlock()
	assert.NotEqual(t, int64(0), used, "one remaining reference should keep the entry resident")

	c.Release("/small.txt")
	c.memMu.Lock()
	used = c.memUsed
	c.memMu.Unlock()
	assert.Equal(t, int64(0), used)
}

func TestReserveRoutesToDiskInsteadOfEvictingLiveEntries(t *testing.T) {
	first := bytes.Repeat([]byte("a"), 600)
	second := bytes.Repeat([]byte("b"), 600)
	r := &fakeReader{
		entries: []archivefmt.Entry{
			{Name: "first.bin", Size: int64(len(first)), ModTime: time.Now()},
			{Name: "second.bin", Size: int64(len(second)), ModTime: time.Now()},
		},
		data: map[string][]byte{"first.bin": first, "second.bin": second},
	}
	cat := catalog.New(r)
	e1, ok := cat.Lookup("/first.bin")
	require.True(t, ok)
	e2, ok := cat.Lookup("/second.bin")
	require.True(t, ok)

	dir := t.TempDir()
	c := New(cat, dir)
	c.memCap = 1000 // both entries together would exceed this budget

	src1, err := c.Fetch("/first.bin", e1)
	require.NoError(t, err)
	require.Equal(t, SourceMemory, src1.Kind, "first entry fits comfortably and should be cached in memory")

	src2, err := c.Fetch("/second.bin", e2)
	require.NoError(t, err)
	assert.Equal(t, SourceDisk, src2.Kind, "second entry must spill to disk rather than evict the first, live entry")

	// The first entry must still be resident and untouched.
	again, err := c.Fetch("/first.bin", e1)
	require.NoError(t, err)
	require.Equal(t, SourceMemory, again.Kind)
	assert.Equal(t, first, again.Data)
}
