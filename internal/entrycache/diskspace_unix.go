//go:build !windows

package entrycache

import "golang.org/x/sys/unix"

// diskFreeSpace reports the bytes available to the current user on
// the filesystem containing dir, via statfs (spec.md §4.C). Used on
// the non-Windows dev/test platform this project is built on; the
// production target is Windows, where diskspace_windows.go takes
// over under the windows build tag.
func diskFreeSpace(dir string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
