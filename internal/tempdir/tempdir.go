// Package tempdir manages the per-session temp directory that backs
// the disk-cache tier and the executable redirector (spec.md §4.H,
// §6: "%TEMP%\SimpleZipDrive\<pid>_<guid>\").
package tempdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
)

var log = corelog.For("tempdir")

const rootName = "SimpleZipDrive"

// Session is one mount's temp directory tree.
type Session struct {
	Root            string // %TEMP%\SimpleZipDrive\<pid>_<guid>
	ExecutablesRoot string // Root\Executables
}

// New creates a fresh session directory under the OS temp directory,
// named with the current process id and a random UUID so concurrent
// mounts never collide, plus its Executables subdirectory.
func New() (*Session, error) {
	base := filepath.Join(os.TempDir(), rootName)
	if err := os.MkdirAll(base, 0o700); err != nil {
		return nil, fmt.Errorf("tempdir: create %s: %w", base, err)
	}

	name := fmt.Sprintf("%d_%s", os.Getpid(), uuid.NewString())
	root := filepath.Join(base, name)
	if err := os.Mkdir(root, 0o700); err != nil {
		return nil, fmt.Errorf("tempdir: create session directory: %w", err)
	}

	exeRoot := filepath.Join(root, "Executables")
	if err := os.Mkdir(exeRoot, 0o700); err != nil {
		os.RemoveAll(root)
		return nil, fmt.Errorf("tempdir: create executables directory: %w", err)
	}

	log.WithField("dir", root).Debug("session temp directory created")
	return &Session{Root: root, ExecutablesRoot: exeRoot}, nil
}

// Close removes the session directory and, if it is now empty, the
// shared SimpleZipDrive root above it (spec.md §4.H step 7).
func (s *Session) Close() error {
	if err := os.RemoveAll(s.Root); err != nil {
		return fmt.Errorf("tempdir: remove session directory: %w", err)
	}
	base := filepath.Dir(s.Root)
	entries, err := os.ReadDir(base)
	if err == nil && len(entries) == 0 {
		os.Remove(base) // best-effort; a concurrent session may have repopulated it
	}
	log.WithField("dir", s.Root).Debug("session temp directory removed")
	return nil
}
