package dispatch

import (
	"os"

	"github.com/drpetersonfernandes/simplezipdrive/internal/iomode"
)

// accessModeMask isolates the read/write/read-write bits of an
// open(2)-style flags int; the os package's O_RDONLY/O_WRONLY/O_RDWR
// values (0, 1, 2) are portable across every GOOS, unlike
// syscall.O_ACCMODE which Windows does not define.
const accessModeMask = os.O_WRONLY | os.O_RDWR

// translateFlags turns a POSIX open(2)-style flags int, as the kernel
// bridge delivers it, into the richer access-mask/creation-mode pair
// the handle state machine expects (spec.md §4.E).
func translateFlags(flags int) (iomode.AccessMask, iomode.CreationMode) {
	var access iomode.AccessMask
	switch flags & accessModeMask {
	case os.O_WRONLY:
		access = iomode.AccessWriteData
	case os.O_RDWR:
		access = iomode.AccessReadData | iomode.AccessWriteData
	default:
		access = iomode.AccessReadData
	}
	access |= iomode.AccessSynchronize | iomode.AccessReadAttributes

	mode := iomode.CreateOpen
	switch {
	case flags&os.O_CREATE != 0 && flags&os.O_EXCL != 0:
		mode = iomode.CreateNew
	case flags&os.O_TRUNC != 0:
		mode = iomode.CreateTruncate
	case flags&os.O_APPEND != 0:
		mode = iomode.CreateAppend
	case flags&os.O_CREATE != 0:
		mode = iomode.CreateOpenOrCreate
	}
	return access, mode
}
