// Package namespace answers directory enumeration, per-path metadata,
// volume info and pattern search against the archive catalog
// (spec.md §4.F).
package namespace

import (
	"sort"
	"strings"
	"time"

	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/glob"
)

// VolumeFeature is a bitmask of filesystem-level capabilities
// reported to the kernel bridge.
type VolumeFeature uint32

const (
	ReadOnlyVolume VolumeFeature = 1 << iota
	CasePreservedNames
	UnicodeOnDisk
)

const (
	VolumeLabel        = "SimpleZipDrive"
	FilesystemName     = "ZipFS"
	MaxComponentLength = 255
)

// Info is the metadata returned by GetInfo.
type Info struct {
	IsDir      bool
	Size       int64
	ModTime    time.Time
	CreateTime time.Time
	AccessTime time.Time
}

// VolumeInfo is the fixed, read-only volume description returned by
// Namespace.VolumeInfo.
type VolumeInfo struct {
	Label              string
	FilesystemName     string
	MaxComponentLength int
	Features           VolumeFeature
}

// Namespace is a read-only view over one archive's catalog.
type Namespace struct {
	cat         *catalog.Catalog
	archiveSize int64 // 0 if unknown
}

// New constructs a Namespace. archiveSize is the archive file's byte
// length if known, used to answer FreeSpace; pass 0 if unknown.
func New(cat *catalog.Catalog, archiveSize int64) *Namespace {
	return &Namespace{cat: cat, archiveSize: archiveSize}
}

// GetInfo implements spec.md §4.F's get_info.
func (ns *Namespace) GetInfo(path string) (Info, bool) {
	if e, ok := ns.cat.Lookup(path); ok {
		return Info{
			IsDir:      e.IsDir,
			Size:       e.Size,
			ModTime:    e.ModTime,
			CreateTime: e.CreateTime,
			AccessTime: e.ModTime,
		}, true
	}
	if stamp, ok := ns.cat.Timestamps(path); ok {
		return Info{
			IsDir:      true,
			ModTime:    stamp.ModTime,
			CreateTime: stamp.CreateTime,
			AccessTime: stamp.AccessTime,
		}, true
	}
	return Info{}, false
}

// List implements spec.md §4.F's list, sorted by name for a stable
// enumeration order (the catalog itself keeps none).
func (ns *Namespace) List(path string) []catalog.Child {
	children := ns.cat.Children(path)
	sort.Slice(children, func(i, j int) bool {
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children
}

// ListPattern implements spec.md §4.F's list_pattern.
func (ns *Namespace) ListPattern(path, pattern string) []catalog.Child {
	all := ns.List(path)
	out := make([]catalog.Child, 0, len(all))
	for _, c := range all {
		if glob.Match(pattern, c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// VolumeInfo implements spec.md §4.F's volume_info.
func (ns *Namespace) VolumeInfo() VolumeInfo {
	return VolumeInfo{
		Label:              VolumeLabel,
		FilesystemName:     FilesystemName,
		MaxComponentLength: MaxComponentLength,
		Features:           ReadOnlyVolume | CasePreservedNames | UnicodeOnDisk,
	}
}

// FreeSpace implements spec.md §4.F's free_space: the volume always
// reports zero bytes free, and a total equal to the archive's byte
// length when known.
func (ns *Namespace) FreeSpace() (free, total uint64) {
	if ns.archiveSize > 0 {
		total = uint64(ns.archiveSize)
	}
	return 0, total
}
