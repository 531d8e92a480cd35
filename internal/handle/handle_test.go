package handle

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/entrycache"
	"github.com/drpetersonfernandes/simplezipdrive/internal/execredirect"
	"github.com/drpetersonfernandes/simplezipdrive/internal/iomode"
	"github.com/drpetersonfernandes/simplezipdrive/internal/status"
)

type fakeReader struct {
	entries []archivefmt.Entry
	data    map[string][]byte
}

func (f *fakeReader) Entries() []archivefmt.Entry { return f.entries }
func (f *fakeReader) Open(e archivefmt.Entry) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data[e.Name])), nil
}
func (f *fakeReader) Close() error { return nil }

func newFactory(t *testing.T) *Factory {
	t.Helper()
	now := time.Now()
	r := &fakeReader{
		entries: []archivefmt.Entry{
			{Name: "dir/file.txt", Size: 5, ModTime: now},
		},
		data: map[string][]byte{"dir/file.txt": []byte("hello")},
	}
	cat := catalog.New(r)
	cache := entrycache.New(cat, t.TempDir())
	red := execredirect.New(cat, t.TempDir(), cache.DecoderLock())
	return NewFactory(cat, cache, red)
}

func TestCreateFileThenRead(t *testing.T) {
	f := newFactory(t)
	h, serr := f.Create("/dir/file.txt", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.Nil(t, serr)
	require.NotNil(t, h)
	assert.False(t, h.IsDir())

	buf := make([]byte, 16)
	n, serr := h.Read(0, buf)
	require.Nil(t, serr)
	assert.Equal(t, "hello", string(buf[:n]))

	n, serr = h.Read(100, buf)
	require.Nil(t, serr)
	assert.Equal(t, 0, n)

	h.Cleanup()
	require.NoError(t, h.Close())

	_, serr = h.Read(0, buf)
	require.NotNil(t, serr)
}

func TestCreateDirectory(t *testing.T) {
	f := newFactory(t)
	h, serr := f.Create("/dir", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.Nil(t, serr)
	assert.True(t, h.IsDir())

	buf := make([]byte, 4)
	_, serr = h.Read(0, buf)
	require.NotNil(t, serr)
	assert.Equal(t, status.KindAccessDenied, serr.Kind)
}

func TestCreateNewOnExistingFails(t *testing.T) {
	f := newFactory(t)
	_, serr := f.Create("/dir/file.txt", iomode.AccessReadData, 0, iomode.CreateNew)
	require.NotNil(t, serr)
	assert.Equal(t, status.KindExists, serr.Kind)
}

func TestCreateMissingPathFails(t *testing.T) {
	f := newFactory(t)
	_, serr := f.Create("/nope.txt", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.NotNil(t, serr)
	assert.Equal(t, status.KindPathNotFound, serr.Kind)
}

func TestCloseReleasesMemoryTierReference(t *testing.T) {
	f := newFactory(t)

	h, serr := f.Create("/dir/file.txt", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.Nil(t, serr)

	buf := make([]byte, 16)
	_, serr = h.Read(0, buf)
	require.Nil(t, serr)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "Close must stay idempotent even though it now releases a cache reference")

	// A second handle on the same path must still be servable after
	// the first handle's reference was released and evicted.
	h2, serr := f.Create("/dir/file.txt", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.Nil(t, serr)
	n, serr := h2.Read(0, buf)
	require.Nil(t, serr)
	assert.Equal(t, "hello", string(buf[:n]))
	require.NoError(t, h2.Close())
}

func TestNegativeOffsetIsInvalidParameter(t *testing.T) {
	f := newFactory(t)
	h, serr := f.Create("/dir/file.txt", iomode.AccessReadData, 0, iomode.CreateOpen)
	require.Nil(t, serr)

	_, serr = h.Read(-1, make([]byte, 4))
	require.NotNil(t, serr)
	assert.Equal(t, status.KindInvalidParameter, serr.Kind)
}
