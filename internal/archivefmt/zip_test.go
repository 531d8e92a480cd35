package archivefmt

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func TestZipReaderRoundTrip(t *testing.T) {
	ra := buildZip(t, map[string]string{
		"docs/readme.txt": "hello world",
		"top.bin":         "binary-ish",
	})

	r, err := newZipReader(ra, int64(ra.Len()), "")
	require.NoError(t, err)
	defer r.Close()

	entries := r.Entries()
	require.Len(t, entries, 2)

	byName := map[string]Entry{}
	for _, e := range entries {
		byName[e.Name] = e
	}

	readme, ok := byName["docs/readme.txt"]
	require.True(t, ok)
	assert.False(t, readme.IsDir)
	assert.Equal(t, int64(len("hello world")), readme.Size)

	rc, err := r.Open(readme)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello world", string(data))
}

func TestOpenSkipsPasswordFuncForUnencryptedArchive(t *testing.T) {
	ra := buildZip(t, map[string]string{"a.txt": "plain, not actually encrypted"})

	called := false
	r, err := Open(FormatZip, ra, int64(ra.Len()), func() (string, error) {
		called = true
		return "irrelevant", nil
	})
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, called, "an unencrypted archive should never invoke the password callback")
}
