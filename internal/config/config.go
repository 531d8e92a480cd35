// Package config holds the resolved settings for one mount attempt,
// gathered from CLI arguments and flags by cmd/simplezipdrive
// (spec.md §4.H, §6).
package config

import (
	"errors"
	"os"
)

// dragAndDropMountPoints is the fixed sequence tried in drag-and-drop
// mode (spec.md §4.H): "iterate through mount points M:\, N:\, O:\,
// P:\, Q:\ ... until one succeeds or all fail."
var dragAndDropMountPoints = []string{`M:\`, `N:\`, `O:\`, `P:\`, `Q:\`}

// DragAndDropMountPoints returns the candidate mount points tried, in
// order, when no explicit mount point was given on the command line.
func DragAndDropMountPoints() []string {
	out := make([]string, len(dragAndDropMountPoints))
	copy(out, dragAndDropMountPoints)
	return out
}

// Config is one mount attempt's resolved configuration.
type Config struct {
	ArchivePath string
	MountPoint  string // empty selects drag-and-drop mode
	Verbose     bool
	Password    string // pre-supplied password, if any; empty means prompt on demand
}

// Validate checks the fields that must be non-empty and that the
// archive path refers to a file the process can at least stat.
func (c Config) Validate() error {
	if c.ArchivePath == "" {
		return errors.New("config: archive path is required")
	}
	info, err := os.Stat(c.ArchivePath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("config: archive path is a directory, not a file")
	}
	return nil
}

// DragAndDrop reports whether this config selects drag-and-drop mode.
func (c Config) DragAndDrop() bool { return c.MountPoint == "" }
