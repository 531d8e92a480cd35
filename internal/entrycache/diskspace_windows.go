//go:build windows

package entrycache

import "golang.org/x/sys/windows"

// diskFreeSpace reports the bytes available to the current user on
// the volume containing dir, via GetDiskFreeSpaceEx (spec.md §4.C).
func diskFreeSpace(dir string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	var freeAvail, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeAvail, &total, &totalFree); err != nil {
		return 0, err
	}
	return freeAvail, nil
}
