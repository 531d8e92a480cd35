package archivefmt

import (
	"io"

	"github.com/bodgit/sevenzip"
)

// sevenZReader wraps github.com/bodgit/sevenzip, a maintained pure-Go
// 7-Zip reader. It is the one format among the three where no
// example repo in the retrieved pack carries a dependency, so it is
// named explicitly here rather than grounded on a kept source file —
// see DESIGN.md.
type sevenZReader struct {
	zr      *sevenzip.Reader
	entries []Entry
}

func newSevenZReader(ra io.ReaderAt, size int64, password string) (Reader, error) {
	var zr *sevenzip.Reader
	var err error
	if password == "" {
		zr, err = sevenzip.NewReader(ra, size)
	} else {
		zr, err = sevenzip.NewReaderWithPassword(ra, size, password)
	}
	if err != nil {
		if password == "" && isLikelyPasswordError(err) {
			return nil, ErrPasswordRequired
		}
		return nil, ErrBadFormat
	}
	r := &sevenZReader{zr: zr}
	for i, f := range zr.File {
		fh := f.FileHeader
		r.entries = append(r.entries, Entry{
			Name:    fh.Name,
			IsDir:   fh.FileInfo().IsDir(),
			Size:    int64(fh.UncompressedSize),
			ModTime: fh.Modified,
			index:   i,
		})
	}
	return r, nil
}

func (r *sevenZReader) Entries() []Entry { return r.entries }

func (r *sevenZReader) Open(e Entry) (io.ReadCloser, error) {
	if e.index < 0 || e.index >= len(r.zr.File) {
		return nil, ErrBadFormat
	}
	return r.zr.File[e.index].Open()
}

func (r *sevenZReader) Close() error { return nil }

// isLikelyPasswordError distinguishes "this archive is AES-encrypted
// and needs a password" from a genuinely corrupt/truncated archive.
// bodgit/sevenzip does not export a sentinel for this, so the check
// is on the error text, same as the password-retry heuristic the
// teacher's own archive backends use when wrapping opaque decoder
// errors.
func isLikelyPasswordError(err error) bool {
	msg := err.Error()
	return containsFold(msg, "password") || containsFold(msg, "encrypt")
}

func containsFold(haystack, needle string) bool {
	h, n := []rune(haystack), []rune(needle)
	if len(n) == 0 || len(n) > len(h) {
		return len(n) == 0
	}
	lower := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			if lower(h[i+j]) != lower(n[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
