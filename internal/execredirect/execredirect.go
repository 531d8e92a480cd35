// Package execredirect implements the executable redirector (spec.md
// §4.D): it recognises handle-creation requests that look like the
// host loading an executable image rather than merely reading a file,
// and serves those from a dedicated extraction directory opened with
// a delete-sharing mode, since image loaders memory-map their target
// and require delete-sharing from the filesystem.
//
// Grounded on the teacher's backend/archive/squashfs cache.go, which
// likewise keeps a table of entries already extracted to disk so a
// second request for the same path reuses the first extraction.
//
// Extraction shares the same underlying archivefmt.Reader as the
// entry cache, so every call into the decoder — from either package —
// is serialized through the one lock entrycache.Cache.DecoderLock
// returns (spec.md §5).
package execredirect

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/iomode"
)

var log = corelog.For("execredirect")

// executableExtensions is the glossary's executable extension set.
var executableExtensions = map[string]bool{
	".exe": true, ".dll": true, ".sys": true, ".drv": true,
	".com": true, ".bat": true, ".cmd": true, ".msi": true,
	".msp": true, ".mst": true, ".ps1": true, ".vbs": true,
	".js": true, ".wsf": true, ".jar": true, ".py": true,
	".rb": true, ".pl": true, ".sh": true,
}

// IsExecutableExtension reports whether name's extension is in the
// executable set.
func IsExecutableExtension(name string) bool {
	return executableExtensions[strings.ToLower(path.Ext(name))]
}

// ShouldRedirect reports whether a create request for name with the
// given access mask should be served through the redirector rather
// than the normal entry cache.
func ShouldRedirect(name string, access iomode.AccessMask) bool {
	return IsExecutableExtension(name) && iomode.LooksLikeExecution(access)
}

// Redirector extracts executables into a dedicated subdirectory of
// the session temp directory, keyed by canonical path so concurrent
// or repeated opens of the same executable reuse one extraction.
type Redirector struct {
	cat *catalog.Catalog
	dir string

	// decoderLock is the entry cache's decoder lock: the redirector
	// opens the same shared archivefmt.Reader the cache does, and none
	// of the zip/sevenzip/rardecode decoders are safe for concurrent
	// Open/Read, so both components must serialize on the one lock
	// rather than each guarding the reader with a private mutex.
	decoderLock sync.Locker

	mu        sync.Mutex
	extracted map[string]string // canonical path -> extracted file path
}

// New constructs a Redirector rooted at dir, which must already exist
// (the mount lifecycle creates it as the session temp directory's
// Executables subdirectory). decoderLock must be the same lock the
// entry cache serializes its own decoder access with.
func New(cat *catalog.Catalog, dir string, decoderLock sync.Locker) *Redirector {
	return &Redirector{cat: cat, dir: dir, decoderLock: decoderLock, extracted: make(map[string]string)}
}

// Extract returns the on-disk path of entry's extracted bytes,
// extracting on first request and reusing the result afterwards.
func (r *Redirector) Extract(canonicalPath string, entry catalog.Entry) (string, error) {
	if fp, ok := r.lookup(canonicalPath); ok {
		return fp, nil
	}

	r.decoderLock.Lock()
	defer r.decoderLock.Unlock()

	// Re-check now that we hold the decoder lock: a concurrent caller
	// may have already extracted this entry while we were waiting.
	if fp, ok := r.lookup(canonicalPath); ok {
		return fp, nil
	}

	fp, err := r.extractLocked(canonicalPath, entry)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.extracted[canonicalPath] = fp
	r.mu.Unlock()
	return fp, nil
}

// lookup returns a still-valid previous extraction for canonicalPath,
// evicting the record if the file has vanished out from under it.
func (r *Redirector) lookup(canonicalPath string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fp, ok := r.extracted[canonicalPath]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(fp); err == nil {
		return fp, true
	}
	delete(r.extracted, canonicalPath)
	return "", false
}

// extractLocked performs the actual decoder read and must only be
// called while r.decoderLock is held.
func (r *Redirector) extractLocked(canonicalPath string, entry catalog.Entry) (string, error) {
	rc, err := r.cat.Reader().Open(entry.Raw())
	if err != nil {
		return "", err
	}
	defer rc.Close()

	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("execredirect: %w", err)
	}
	base := path.Base(canonicalPath)
	fp := filepath.Join(r.dir, token+"_"+base)

	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o700)
	if err != nil {
		return "", fmt.Errorf("execredirect: create %s: %w", fp, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(fp)
		return "", fmt.Errorf("execredirect: extract %s: %w", canonicalPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(fp)
		return "", fmt.Errorf("execredirect: close %s: %w", fp, err)
	}

	log.WithField("path", canonicalPath).WithField("file", fp).Debug("redirected executable extraction")
	return fp, nil
}

func randomToken() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Close removes every extraction this redirector produced. It does
// not remove dir itself; the session temp directory owns that.
func (r *Redirector) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for k, fp := range r.extracted {
		if err := os.Remove(fp); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		delete(r.extracted, k)
	}
	return firstErr
}
