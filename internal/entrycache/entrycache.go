// Package entrycache implements the hybrid memory/disk byte cache
// that sits between the archive decoder and open file handles. Small
// entries are decompressed once and kept resident; large or
// unbounded-size entries spill to a per-session temp file instead, so
// a single oversized entry can never blow the memory budget.
//
// Grounded on the teacher's backend/cache (patrickmn/go-cache for the
// memory tier) and backend/archive/squashfs's cache.go (a disk-backed
// cache of decoded bytes keyed by archive entry, reused across opens).
package entrycache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	gocache "github.com/patrickmn/go-cache"

	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
)

const (
	// PerEntryLimit is the largest single entry the memory tier will
	// hold; anything bigger always spills to disk regardless of
	// remaining budget.
	PerEntryLimit = 512 * 1024 * 1024

	// MemBudget is the total number of decompressed bytes the memory
	// tier may hold across all entries at once.
	MemBudget = 1024 * 1024 * 1024
)

var log = corelog.For("entrycache")

// ErrDiskFull is returned when the disk tier's free-space check finds
// too little room on the temp drive for a known-size entry (spec.md
// §4.C).
var ErrDiskFull = errors.New("entrycache: insufficient free space on temp drive")

// SourceKind identifies which tier backs a fetched entry's bytes.
type SourceKind int

const (
	SourceMemory SourceKind = iota
	SourceDisk
)

// Source is the byte-source handed to a file handle: either an
// in-memory slice or the path to an extracted temp file.
type Source struct {
	Kind     SourceKind
	Data     []byte
	FilePath string
	Size     int64
}

// Cache is the hybrid entry cache for a single mounted archive. One
// Cache is constructed per session and torn down with the session.
type Cache struct {
	cat     *catalog.Catalog
	tempDir string

	// decoderMu serializes all access to the underlying archive
	// reader: archive/zip, bodgit/sevenzip and rardecode.v2 decoders
	// are not documented as safe for concurrent Open/Read, so every
	// extraction goes through this lock regardless of which entry it
	// targets (spec.md invariant: "only one entry is being extracted
	// from the decoder at a time"). DecoderLock exposes the same lock
	// to the executable redirector, which shares this reader.
	decoderMu sync.Mutex

	mem      *gocache.Cache
	memMu    sync.Mutex
	memUsed  int64
	refs     map[string]int // canonical fold path -> live handle count
	perEntry int64
	memCap   int64

	diskMu sync.Mutex
	disk   map[string]string // canonical fold path -> temp file path
	seq    int64
}

// New constructs a Cache backed by cat, extracting overflow entries
// into tempDir (expected to be the session's directory under
// %TEMP%\SimpleZipDrive).
func New(cat *catalog.Catalog, tempDir string) *Cache {
	return &Cache{
		cat:      cat,
		tempDir:  tempDir,
		mem:      gocache.New(gocache.NoExpiration, gocache.NoExpiration),
		refs:     make(map[string]int),
		perEntry: PerEntryLimit,
		memCap:   MemBudget,
		disk:     make(map[string]string),
	}
}

// DecoderLock exposes the lock that serializes every call into the
// shared archive reader, so the executable redirector (which opens
// the same reader for its own extractions) can serialize on it too.
func (c *Cache) DecoderLock() sync.Locker { return &c.decoderMu }

func foldKey(path string) string { return strings.ToLower(path) }

// Fetch returns the byte source for entry at canonical path,
// extracting it from the archive on first access and serving from
// whichever tier subsequently holds it on later accesses. A memory
// tier hit is ref-counted against path; the caller must call Release
// exactly once per Fetch that returns a SourceMemory result, when the
// handle holding it closes (spec.md §3 invariant 4, §8 property 5).
func (c *Cache) Fetch(path string, entry catalog.Entry) (Source, error) {
	key := foldKey(path)

	if v, ok := c.mem.Get(key); ok {
		data := v.([]byte)
		c.acquire(key)
		return Source{Kind: SourceMemory, Data: data, Size: int64(len(data))}, nil
	}

	c.diskMu.Lock()
	if fp, ok := c.disk[key]; ok {
		c.diskMu.Unlock()
		if fi, err := os.Stat(fp); err == nil {
			return Source{Kind: SourceDisk, FilePath: fp, Size: fi.Size()}, nil
		}
		// The temp file vanished out from under us; fall through and
		// re-extract.
		c.diskMu.Lock()
		delete(c.disk, key)
	}
	c.diskMu.Unlock()

	return c.extract(key, entry)
}

// Release drops one live reference to a memory-tier entry. Once the
// last reference is released, the entry is evicted from the memory
// tier immediately and its bytes are deducted from the budget — the
// only path by which memUsed goes back down, per spec.md's
// eventually-zero invariant.
func (c *Cache) Release(path string) {
	key := foldKey(path)
	c.memMu.Lock()
	defer c.memMu.Unlock()

	if c.refs[key] > 0 {
		c.refs[key]--
	}
	if c.refs[key] > 0 {
		return
	}
	delete(c.refs, key)

	if v, ok := c.mem.Get(key); ok {
		if data, ok2 := v.([]byte); ok2 {
			c.memUsed -= int64(len(data))
			if c.memUsed < 0 {
				c.memUsed = 0
			}
		}
		c.mem.Delete(key)
	}
}

func (c *Cache) acquire(key string) {
	c.memMu.Lock()
	c.refs[key]++
	c.memMu.Unlock()
}

func (c *Cache) extract(key string, entry catalog.Entry) (Source, error) {
	c.decoderMu.Lock()
	defer c.decoderMu.Unlock()

	// Re-check now that we hold the decoder lock: a concurrent caller
	// may have already extracted this entry while we were waiting.
	if v, ok := c.mem.Get(key); ok {
		data := v.([]byte)
		c.acquire(key)
		return Source{Kind: SourceMemory, Data: data, Size: int64(len(data))}, nil
	}
	c.diskMu.Lock()
	if fp, ok := c.disk[key]; ok {
		c.diskMu.Unlock()
		if fi, err := os.Stat(fp); err == nil {
			return Source{Kind: SourceDisk, FilePath: fp, Size: fi.Size()}, nil
		}
	} else {
		c.diskMu.Unlock()
	}

	rc, err := c.cat.Reader().Open(entry.Raw())
	if err != nil {
		return Source{}, err
	}
	defer rc.Close()

	if entry.Size >= 0 && entry.Size <= c.perEntry && c.reserve(entry.Size) {
		data, err := io.ReadAll(io.LimitReader(rc, entry.Size+1))
		if err != nil {
			c.release(entry.Size)
			return Source{}, err
		}
		if int64(len(data)) != entry.Size {
			c.release(entry.Size)
			return Source{}, fmt.Errorf("entrycache: %s: decompressed size %d does not match catalog size %d", key, len(data), entry.Size)
		}
		c.mem.Set(key, data, gocache.NoExpiration)
		c.acquire(key)
		log.WithField("path", key).WithField("bytes", len(data)).Debug("cached entry in memory")
		return Source{Kind: SourceMemory, Data: data, Size: int64(len(data))}, nil
	}

	return c.extractToDisk(key, rc, entry.Size)
}

// reserve claims size bytes of the memory budget. It never evicts a
// resident entry to make room: when the budget is already committed
// to other live entries, the new entry is routed to the disk tier
// instead (spec.md §4.C back-pressure rule), so a burst of concurrent
// large reads can never force an already-open handle's bytes out from
// under it.
func (c *Cache) reserve(size int64) bool {
	if size > c.memCap {
		return false
	}
	c.memMu.Lock()
	defer c.memMu.Unlock()

	if c.memUsed+size > c.memCap {
		return false
	}
	c.memUsed += size
	return true
}

func (c *Cache) release(size int64) {
	c.memMu.Lock()
	c.memUsed -= size
	if c.memUsed < 0 {
		c.memUsed = 0
	}
	c.memMu.Unlock()
}

func (c *Cache) extractToDisk(key string, rc io.Reader, size int64) (Source, error) {
	if size >= 0 {
		if free, err := diskFreeSpace(c.tempDir); err == nil && free < uint64(size) {
			log.WithField("path", key).WithField("needed", size).WithField("free", free).Warn("disk tier rejected entry: insufficient free space")
			return Source{}, ErrDiskFull
		}
		// If the free-space check itself failed (platform call
		// unavailable, path not yet created, ...), proceed rather than
		// block every extraction on a check that cannot be answered.
	}

	n := atomic.AddInt64(&c.seq, 1)
	fp := filepath.Join(c.tempDir, fmt.Sprintf("entry_%06d.bin", n))

	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return Source{}, fmt.Errorf("entrycache: create temp file: %w", err)
	}
	written, err := io.Copy(f, rc)
	closeErr := f.Close()
	if err != nil {
		os.Remove(fp)
		return Source{}, fmt.Errorf("entrycache: extract %s: %w", key, err)
	}
	if closeErr != nil {
		os.Remove(fp)
		return Source{}, fmt.Errorf("entrycache: close temp file: %w", closeErr)
	}

	c.diskMu.Lock()
	c.disk[key] = fp
	c.diskMu.Unlock()

	log.WithField("path", key).WithField("bytes", written).WithField("file", fp).Debug("extracted entry to disk tier")
	return Source{Kind: SourceDisk, FilePath: fp, Size: written}, nil
}

// Close removes every disk-tier temp file created by this cache. It
// does not touch tempDir itself; the session temp directory owns
// that.
func (c *Cache) Close() error {
	c.diskMu.Lock()
	defer c.diskMu.Unlock()
	var firstErr error
	for k, fp := range c.disk {
		if err := os.Remove(fp); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		delete(c.disk, k)
	}
	return firstErr
}
