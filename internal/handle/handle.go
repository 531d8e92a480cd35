// Package handle implements the per-open-file state machine (spec.md
// §4.E): Created -> Open -> Drained -> Closed. A Handle owns exactly
// one byte source — none for a directory, or a memory buffer, disk
// cache file, or redirected-executable file for a regular file — and
// is never shared across concurrent opens of the same path.
package handle

import (
	"fmt"
	"os"
	"sync"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/entrycache"
	"github.com/drpetersonfernandes/simplezipdrive/internal/execredirect"
	"github.com/drpetersonfernandes/simplezipdrive/internal/iomode"
	"github.com/drpetersonfernandes/simplezipdrive/internal/status"
)

var log = corelog.For("handle")

// State is a handle's position in its Created -> Open -> Drained ->
// Closed lifecycle.
type State int

const (
	Created State = iota
	Open
	Drained
	Closed
)

// SourceKind identifies what a file handle's byte source is.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceMemory
	SourceDisk
	SourceExtracted
)

// Handle is one open reference to a canonical path.
type Handle struct {
	mu sync.Mutex

	state State
	path  string
	isDir bool

	kind  SourceKind
	data  []byte // SourceMemory
	file  *os.File
	size  int64
	cache *entrycache.Cache // non-nil only for SourceMemory, to release on Close
}

// IsDir reports whether this handle refers to a directory.
func (h *Handle) IsDir() bool { return h.isDir }

// Path returns the handle's canonical path.
func (h *Handle) Path() string { return h.path }

// Factory builds handles against one archive's catalog, entry cache
// and executable redirector. One Factory is constructed per mounted
// session.
type Factory struct {
	cat        *catalog.Catalog
	cache      *entrycache.Cache
	redirector *execredirect.Redirector
}

func NewFactory(cat *catalog.Catalog, cache *entrycache.Cache, redirector *execredirect.Redirector) *Factory {
	return &Factory{cat: cat, cache: cache, redirector: redirector}
}

// Create implements spec.md §4.E's Create operation.
func (f *Factory) Create(path string, access iomode.AccessMask, share iomode.ShareMode, mode iomode.CreationMode) (*Handle, *status.Error) {
	_ = share // no locking semantics are enforced; accepted and ignored per spec.md §5

	if !f.cat.Exists(path) {
		return nil, status.New(status.KindPathNotFound, path, nil)
	}

	if f.cat.IsDirectory(path) {
		return f.createDirectory(path, access, mode)
	}
	return f.createFile(path, access, mode)
}

func (f *Factory) createDirectory(path string, access iomode.AccessMask, mode iomode.CreationMode) (*Handle, *status.Error) {
	switch mode {
	case iomode.CreateOpen, iomode.CreateOpenOrCreate, iomode.CreateCreate:
		// proceeds below
	case iomode.CreateNew:
		return nil, status.New(status.KindExists, path, nil)
	default:
		return nil, status.New(status.KindAccessDenied, path, nil)
	}
	if access.Has(iomode.AccessWriteData) || access.Has(iomode.AccessAppendData) {
		return nil, status.New(status.KindAccessDenied, path, nil)
	}
	return &Handle{state: Created, path: path, isDir: true}, nil
}

func (f *Factory) createFile(path string, access iomode.AccessMask, mode iomode.CreationMode) (*Handle, *status.Error) {
	switch mode {
	case iomode.CreateNew:
		return nil, status.New(status.KindExists, path, nil)
	case iomode.CreateTruncate, iomode.CreateAppend:
		return nil, status.New(status.KindAccessDenied, path, nil)
	}

	entry, ok := f.cat.Lookup(path)
	if !ok {
		// A synthesized directory would already have been routed to
		// createDirectory; reaching here with no catalog entry means
		// the namespace and the catalog disagree, which should never
		// happen.
		return nil, status.New(status.KindInternal, path, fmt.Errorf("handle: %s resolved as a file but has no catalog entry", path))
	}

	if f.redirector != nil && execredirect.ShouldRedirect(path, access) {
		return f.createExtracted(path, entry)
	}
	return f.createCached(path, entry)
}

func (f *Factory) createExtracted(path string, entry catalog.Entry) (*Handle, *status.Error) {
	fp, err := f.redirector.Extract(path, entry)
	if err != nil {
		return nil, classifyErr(path, err)
	}
	file, err := os.Open(fp)
	if err != nil {
		return nil, status.New(status.KindSourceIO, path, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, status.New(status.KindSourceIO, path, err)
	}
	return &Handle{state: Created, path: path, kind: SourceExtracted, file: file, size: fi.Size()}, nil
}

func (f *Factory) createCached(path string, entry catalog.Entry) (*Handle, *status.Error) {
	src, err := f.cache.Fetch(path, entry)
	if err != nil {
		return nil, classifyErr(path, err)
	}
	switch src.Kind {
	case entrycache.SourceMemory:
		return &Handle{state: Created, path: path, kind: SourceMemory, data: src.Data, size: src.Size, cache: f.cache}, nil
	case entrycache.SourceDisk:
		file, err := os.Open(src.FilePath)
		if err != nil {
			return nil, status.New(status.KindSourceIO, path, err)
		}
		return &Handle{state: Created, path: path, kind: SourceDisk, file: file, size: src.Size}, nil
	default:
		return nil, status.New(status.KindInternal, path, fmt.Errorf("handle: unknown entry cache source kind %d", src.Kind))
	}
}

func classifyErr(path string, err error) *status.Error {
	switch err {
	case archivefmt.ErrPasswordRequired:
		return status.New(status.KindPassword, path, err)
	case archivefmt.ErrBadFormat:
		return status.New(status.KindArchiveFormat, path, err)
	case entrycache.ErrDiskFull:
		return status.New(status.KindDiskFull, path, err)
	default:
		return status.New(status.KindSourceIO, path, err)
	}
}

// Read implements spec.md §4.E's Read operation.
func (h *Handle) Read(offset int64, buf []byte) (int, *status.Error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Closed {
		return 0, status.New(status.KindInternal, h.path, fmt.Errorf("handle: read after close"))
	}
	if h.isDir {
		return 0, status.New(status.KindAccessDenied, h.path, nil)
	}
	if offset < 0 {
		return 0, status.New(status.KindInvalidParameter, h.path, nil)
	}
	if offset >= h.size {
		h.state = Drained
		return 0, nil
	}

	var n int
	var err error
	switch h.kind {
	case SourceMemory:
		n = copy(buf, h.data[offset:])
	case SourceDisk, SourceExtracted:
		n, err = h.file.ReadAt(buf, offset)
		if err != nil && n == 0 {
			return 0, status.New(status.KindSourceIO, h.path, err)
		}
	default:
		return 0, status.New(status.KindInternal, h.path, fmt.Errorf("handle: read on source kind %d", h.kind))
	}

	if h.state == Created {
		h.state = Open
	}
	if int64(n) < int64(len(buf)) || offset+int64(n) >= h.size {
		h.state = Drained
	}
	return n, nil
}

// Cleanup implements spec.md §4.E's Cleanup operation: a no-op. The
// byte source is deliberately not released here, because some kernel
// bridges deliver a final read after cleanup and before close.
func (h *Handle) Cleanup() {
	log.WithField("path", h.path).Debug("cleanup")
}

// Close implements spec.md §4.E's Close operation: release the byte
// source and move to the terminal state. Idempotent.
//
// For a memory-tier handle this drops the handle's reference on the
// entry cache, which evicts the entry and reclaims its budget the
// moment the last open handle on that path releases it (spec.md §3
// invariant 4, §8 property 5) — eviction never waits for a TTL or for
// another fetch to come along and force it out.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Closed {
		return nil
	}
	h.state = Closed
	if h.kind == SourceMemory && h.cache != nil {
		h.cache.Release(h.path)
	}
	h.data = nil
	if h.file != nil {
		err := h.file.Close()
		h.file = nil
		return err
	}
	return nil
}
