package dispatch

import (
	"github.com/winfsp/cgofuse/fuse"

	"github.com/drpetersonfernandes/simplezipdrive/internal/status"
)

// errnoFor maps a core error kind to the negative errno cgofuse
// expects a callback to return (spec.md §6, "status codes returned to
// the bridge").
func errnoFor(kind status.Kind) int {
	switch kind {
	case status.KindNone:
		return 0
	case status.KindExists:
		return -fuse.EEXIST
	case status.KindPathNotFound:
		return -fuse.ENOENT
	case status.KindAccessDenied:
		return -fuse.EACCES
	case status.KindInvalidParameter:
		return -fuse.EINVAL
	case status.KindDiskFull:
		return -fuse.ENOSPC
	case status.KindNotReady:
		return -fuse.EAGAIN
	case status.KindNotImplemented:
		return -fuse.ENOSYS
	case status.KindPassword:
		return -fuse.EACCES
	case status.KindPathTooLong:
		return -fuse.ENAMETOOLONG
	case status.KindArchiveFormat, status.KindSourceIO, status.KindInternal:
		return -fuse.EIO
	default:
		return -fuse.EIO
	}
}

// errnoForErr maps a *status.Error (as returned by the handle and
// namespace layers) to a cgofuse errno, logging unexpected kinds.
func errnoForErr(err *status.Error) int {
	if err == nil {
		return 0
	}
	log.WithField("path", err.Path).WithField("kind", err.Kind.String()).Debug("callback failed")
	return errnoFor(err.Kind)
}
