// Package catalog builds and serves the immutable archive namespace:
// the flat entry list turned into canonical paths, plus the
// directories that are implied but never explicit in the archive
// (spec.md §3, §4.B).
package catalog

import (
	"strings"
	"time"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/vpath"
)

// Entry is a catalog record for an explicit archive entry.
type Entry struct {
	Path          string // canonical, original case preserved
	IsDir         bool
	Size          int64 // -1 if unknown
	ModTime       time.Time
	CreateTime    time.Time
	HasCreateTime bool
	Encrypted     bool

	archiveIndex int
	raw          archivefmt.Entry
}

// Raw returns the archivefmt.Entry backing this catalog entry, for
// passing to archivefmt.Reader.Open.
func (e Entry) Raw() archivefmt.Entry { return e.raw }

// Stamp holds the three timestamps a synthesized directory carries,
// inherited from whichever entry first implied it.
type Stamp struct {
	ModTime    time.Time
	CreateTime time.Time
	AccessTime time.Time
}

type dirRecord struct {
	path  string // canonical, original case preserved
	stamp Stamp
}

type childRecord struct {
	name        string
	isDir       bool
	fromCatalog bool
}

// Catalog is the immutable, once-built mapping from canonical path to
// archive entry, plus the synthesized-directory set. It is safe for
// unsynchronised concurrent reads once New returns (invariant 1:
// "the catalog never mutates after construction").
type Catalog struct {
	reader archivefmt.Reader

	entries map[string]Entry     // keyed by fold(path)
	dirs    map[string]dirRecord // keyed by fold(path)

	// children[fold(parentPath)][fold(name)] -> childRecord
	children map[string]map[string]childRecord
}

func fold(path string) string { return strings.ToLower(path) }

// New builds a Catalog from a single pass over reader.Entries()
// (spec.md §4.B step 2-4). reader is retained for later Open calls by
// the Hybrid Entry Cache.
func New(reader archivefmt.Reader) *Catalog {
	c := &Catalog{
		reader:   reader,
		entries:  make(map[string]Entry),
		dirs:     make(map[string]dirRecord),
		children: make(map[string]map[string]childRecord),
	}

	for i, e := range reader.Entries() {
		if e.Name == "" {
			continue
		}
		isDir := e.IsDir || strings.HasSuffix(e.Name, "/") || strings.HasSuffix(e.Name, `\`)
		path := vpath.Clean(e.Name)
		if path == vpath.Root {
			continue
		}
		c.entries[fold(path)] = Entry{
			Path:          path,
			IsDir:         isDir,
			Size:          e.Size,
			ModTime:       e.ModTime,
			CreateTime:    e.CreateTime,
			HasCreateTime: e.HasCreateTime,
			Encrypted:     e.Encrypted,
			archiveIndex:  i,
			raw:           e,
		}

		stamp := Stamp{ModTime: e.ModTime, CreateTime: e.CreateTime, AccessTime: e.ModTime}
		for _, anc := range vpath.Ancestors(path) {
			k := fold(anc)
			if _, isCatalog := c.entries[k]; isCatalog {
				continue
			}
			if _, exists := c.dirs[k]; !exists {
				c.dirs[k] = dirRecord{path: anc, stamp: stamp}
			}
		}
	}

	// An explicit directory entry listed after one of its descendants
	// pre-empts the synthesized twin recorded for it above.
	for k := range c.entries {
		delete(c.dirs, k)
	}

	// Invariant: the root is always present.
	if _, exists := c.dirs[fold(vpath.Root)]; !exists {
		if _, isCatalog := c.entries[fold(vpath.Root)]; !isCatalog {
			c.dirs[fold(vpath.Root)] = dirRecord{path: vpath.Root}
		}
	}

	c.buildChildren()
	return c
}

func (c *Catalog) buildChildren() {
	add := func(path string, isDir, fromCatalog bool) {
		if path == vpath.Root {
			return
		}
		parent := vpath.Parent(path)
		name := vpath.Base(path)
		pk := fold(parent)
		if c.children[pk] == nil {
			c.children[pk] = make(map[string]childRecord)
		}
		nk := fold(name)
		existing, ok := c.children[pk][nk]
		if !ok || (fromCatalog && !existing.fromCatalog) {
			c.children[pk][nk] = childRecord{name: name, isDir: isDir, fromCatalog: fromCatalog}
		}
	}
	for _, e := range c.entries {
		add(e.Path, e.IsDir, true)
	}
	for _, d := range c.dirs {
		add(d.path, true, false)
	}
}

// Lookup returns the catalog entry at path, if any. ok is false for
// synthesized directories and for paths that don't exist at all; use
// IsDirectory to test synthesized directories.
func (c *Catalog) Lookup(path string) (Entry, bool) {
	e, ok := c.entries[fold(path)]
	return e, ok
}

// IsDirectory reports whether path names a directory, explicit or
// synthesized (the root always qualifies).
func (c *Catalog) IsDirectory(path string) bool {
	if path == vpath.Root {
		return true
	}
	if e, ok := c.entries[fold(path)]; ok {
		return e.IsDir
	}
	_, ok := c.dirs[fold(path)]
	return ok
}

// Exists reports whether path names anything in the namespace at all.
func (c *Catalog) Exists(path string) bool {
	if path == vpath.Root {
		return true
	}
	if _, ok := c.entries[fold(path)]; ok {
		return true
	}
	_, ok := c.dirs[fold(path)]
	return ok
}

// Timestamps returns the three timestamps for path (synthesized
// directories only; explicit entries carry their own via Lookup).
func (c *Catalog) Timestamps(path string) (Stamp, bool) {
	if path == vpath.Root {
		if d, ok := c.dirs[fold(vpath.Root)]; ok {
			return d.stamp, true
		}
		return Stamp{}, true
	}
	d, ok := c.dirs[fold(path)]
	return d.stamp, ok
}

// Child is one direct entry returned by Children.
type Child struct {
	Name  string
	IsDir bool
}

// Children returns the direct children of path, de-duplicated by
// name (case-insensitive), catalog entries preferred over
// synthesized directories of the same name (spec.md §4.B).
func (c *Catalog) Children(path string) []Child {
	m, ok := c.children[fold(path)]
	if !ok {
		return nil
	}
	out := make([]Child, 0, len(m))
	for _, cr := range m {
		out = append(out, Child{Name: cr.name, IsDir: cr.isDir})
	}
	return out
}

// Reader returns the underlying archive reader, for the Hybrid Entry
// Cache to open entry streams against.
func (c *Catalog) Reader() archivefmt.Reader { return c.reader }

// ArchiveIndex returns the position of a catalog Entry in the
// reader's Entries() list; use Entry.Raw for Open calls.
func (c *Catalog) ArchiveIndex(e Entry) int { return e.archiveIndex }

// Close tears down the underlying archive reader.
func (c *Catalog) Close() error { return c.reader.Close() }
