package dispatch

import (
	"time"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/drpetersonfernandes/simplezipdrive/internal/namespace"
)

func timespec(t time.Time) fuse.Timespec {
	if t.IsZero() {
		return fuse.Timespec{}
	}
	return fuse.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// fillStat populates stat from a namespace.Info. The volume is
// read-only throughout, so files never carry a write bit and
// directories never carry more than read-and-execute.
func fillStat(stat *fuse.Stat_t, info namespace.Info) {
	if info.IsDir {
		stat.Mode = fuse.S_IFDIR | 0o555
		stat.Size = 0
	} else {
		stat.Mode = fuse.S_IFREG | 0o444
		stat.Size = info.Size
	}
	stat.Nlink = 1
	stat.Mtim = timespec(info.ModTime)
	stat.Ctim = timespec(info.CreateTime)
	stat.Atim = timespec(info.AccessTime)
}
