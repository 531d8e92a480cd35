package namespace

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
)

type fakeReader struct{ entries []archivefmt.Entry }

func (f *fakeReader) Entries() []archivefmt.Entry { return f.entries }
func (f *fakeReader) Open(archivefmt.Entry) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}
func (f *fakeReader) Close() error { return nil }

func newFixture() *Namespace {
	now := time.Now()
	r := &fakeReader{entries: []archivefmt.Entry{
		{Name: "Images/cat.png", Size: 10, ModTime: now},
		{Name: "Images/dog.png", Size: 20, ModTime: now},
		{Name: "readme.txt", Size: 5, ModTime: now},
	}}
	return New(catalog.New(r), 1000)
}

func TestGetInfoFileAndSynthesizedDir(t *testing.T) {
	ns := newFixture()

	info, ok := ns.GetInfo("/readme.txt")
	require.True(t, ok)
	assert.False(t, info.IsDir)
	assert.Equal(t, int64(5), info.Size)

	info, ok = ns.GetInfo("/images")
	require.True(t, ok)
	assert.True(t, info.IsDir)
}

func TestListSortedAndDeduped(t *testing.T) {
	ns := newFixture()
	children := ns.List("/")
	require.Len(t, children, 2)
	assert.Equal(t, "Images", children[0].Name)
	assert.Equal(t, "readme.txt", children[1].Name)
}

func TestListPattern(t *testing.T) {
	ns := newFixture()
	matches := ns.ListPattern("/images", "*.png")
	assert.Len(t, matches, 2)

	matches = ns.ListPattern("/images", "cat*")
	require.Len(t, matches, 1)
	assert.Equal(t, "cat.png", matches[0].Name)
}

func TestVolumeInfoAndFreeSpace(t *testing.T) {
	ns := newFixture()
	vi := ns.VolumeInfo()
	assert.Equal(t, VolumeLabel, vi.Label)
	assert.Equal(t, ReadOnlyVolume|CasePreservedNames|UnicodeOnDisk, vi.Features)

	free, total := ns.FreeSpace()
	assert.Equal(t, uint64(0), free)
	assert.Equal(t, uint64(1000), total)
}
