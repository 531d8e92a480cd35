package dispatch

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/entrycache"
	"github.com/drpetersonfernandes/simplezipdrive/internal/execredirect"
	"github.com/drpetersonfernandes/simplezipdrive/internal/handle"
	"github.com/drpetersonfernandes/simplezipdrive/internal/namespace"
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

func newDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	now := time.Now()
	r := &fakeReader{
		entries: []archivefmt.Entry{{Name: "docs/readme.txt", Size: 5, ModTime: now}},
		data:    map[string][]byte{"docs/readme.txt": []byte("hello")},
	}
	cat := catalog.New(r)
	cache := entrycache.New(cat, t.TempDir())
	red := execredirect.New(cat, t.TempDir(), cache.DecoderLock())
	ns := namespace.New(cat, 100)
	return New(cat, ns, handle.NewFactory(cat, cache, red))
}

func TestTranslateFlags(t *testing.T) {
	access, mode := translateFlags(os.O_RDONLY)
	assert.True(t, access.Has(1)) // AccessReadData bit
	assert.Equal(t, 0, int(mode)) // CreateOpen

	_, mode = translateFlags(os.O_RDONLY | os.O_CREATE | os.O_EXCL)
	assert.Equal(t, 3, int(mode)) // CreateNew
}

func TestErrnoFor(t *testing.T) {
	assert.Equal(t, 0, errnoFor(status.KindNone))
	assert.Equal(t, -fuse.ENOENT, errnoFor(status.KindPathNotFound))
	assert.Equal(t, -fuse.EACCES, errnoFor(status.KindAccessDenied))
}

func TestGetattrRootAndFile(t *testing.T) {
	d := newDispatcher(t)
	var stat fuse.Stat_t

	errc := d.Getattr("/", &stat, 0)
	require.Equal(t, 0, errc)
	assert.Equal(t, uint32(fuse.S_IFDIR|0o555), stat.Mode)

	errc = d.Getattr("/docs/readme.txt", &stat, 0)
	require.Equal(t, 0, errc)
	assert.Equal(t, uint32(fuse.S_IFREG|0o444), stat.Mode)
	assert.Equal(t, int64(5), stat.Size)

	errc = d.Getattr("/nope", &stat, 0)
	assert.Equal(t, -fuse.ENOENT, errc)
}

func TestOpenReadRelease(t *testing.T) {
	d := newDispatcher(t)

	errc, fh := d.Open("/docs/readme.txt", os.O_RDONLY)
	require.Equal(t, 0, errc)

	buf := make([]byte, 16)
	n := d.Read("/docs/readme.txt", buf, 0, fh)
	require.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))

	errc = d.Release("/docs/readme.txt", fh)
	assert.Equal(t, 0, errc)
}

func TestReaddirListsChildren(t *testing.T) {
	d := newDispatcher(t)
	errc, fh := d.Opendir("/docs")
	require.Equal(t, 0, errc)

	var names []string
	fill := func(name string, stat *fuse.Stat_t, ofst int64) bool {
		names = append(names, name)
		return true
	}
	errc = d.Readdir("/docs", fill, 0, fh)
	require.Equal(t, 0, errc)
	assert.Contains(t, names, "readme.txt")

	assert.Equal(t, 0, d.Releasedir("/docs", fh))
}

func TestMutatingCallbacksAreDenied(t *testing.T) {
	d := newDispatcher(t)
	assert.Equal(t, -fuse.EACCES, d.Mkdir("/new", 0o755))
	assert.Equal(t, -fuse.EACCES, d.Unlink("/docs/readme.txt"))
	assert.Equal(t, -fuse.EACCES, d.Rmdir("/docs"))
	assert.Equal(t, -fuse.EACCES, d.Rename("/docs", "/docs2"))
	assert.Equal(t, -fuse.EACCES, d.Chmod("/docs/readme.txt", 0o777))
	assert.Equal(t, -fuse.EACCES, d.Truncate("/docs/readme.txt", 0, 0))
	assert.Equal(t, -fuse.EACCES, d.Write("/docs/readme.txt", []byte("x"), 0, 0))
}
