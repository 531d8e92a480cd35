// Package mountlib drives one mount attempt end to end (spec.md
// §4.H): open and validate the archive, build the session temp
// directory and the core components, hand the dispatcher to the
// kernel bridge, wait for a shutdown signal, and guarantee teardown
// even on partial initialization.
package mountlib

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/winfsp/cgofuse/fuse"

	"github.com/drpetersonfernandes/simplezipdrive/internal/archivefmt"
	"github.com/drpetersonfernandes/simplezipdrive/internal/catalog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/config"
	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/dispatch"
	"github.com/drpetersonfernandes/simplezipdrive/internal/entrycache"
	"github.com/drpetersonfernandes/simplezipdrive/internal/execredirect"
	"github.com/drpetersonfernandes/simplezipdrive/internal/handle"
	"github.com/drpetersonfernandes/simplezipdrive/internal/namespace"
	"github.com/drpetersonfernandes/simplezipdrive/internal/tempdir"
)

var log = corelog.For("mountlib")

// PasswordProvider is asked, synchronously, for a password when the
// archive decoder reports encryption (spec.md §6).
type PasswordProvider func() (string, error)

// session owns every resource a single mount attempt allocates, so
// teardown can run unconditionally regardless of how far setup got.
type session struct {
	file       *os.File
	tmp        *tempdir.Session
	cat        *catalog.Catalog
	cache      *entrycache.Cache
	redirector *execredirect.Redirector
}

func (s *session) close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.WithField("err", err).Warn("entry cache teardown reported an error")
		}
	}
	if s.redirector != nil {
		if err := s.redirector.Close(); err != nil {
			log.WithField("err", err).Warn("executable redirector teardown reported an error")
		}
	}
	if s.cat != nil {
		if err := s.cat.Close(); err != nil {
			log.WithField("err", err).Warn("archive close reported an error")
		}
	}
	if s.file != nil {
		s.file.Close()
	}
	if s.tmp != nil {
		if err := s.tmp.Close(); err != nil {
			log.WithField("err", err).Warn("session temp directory teardown reported an error")
		}
	}
}

func open(cfg config.Config, passwordFn PasswordProvider) (*session, *dispatch.Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	f, err := os.Open(cfg.ArchivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("mountlib: open archive: %w", err)
	}
	s := &session{file: f}

	fi, err := f.Stat()
	if err != nil {
		s.close()
		return nil, nil, fmt.Errorf("mountlib: stat archive: %w", err)
	}

	format, ok := archivefmt.DetectFormat(strings.ToLower(filepath.Ext(fi.Name())))
	if !ok {
		s.close()
		return nil, nil, fmt.Errorf("mountlib: unrecognised archive extension for %s", cfg.ArchivePath)
	}

	tmp, err := tempdir.New()
	if err != nil {
		s.close()
		return nil, nil, err
	}
	s.tmp = tmp

	var pwFn archivefmt.PasswordFunc
	if passwordFn != nil {
		pwFn = archivefmt.PasswordFunc(passwordFn)
	}
	reader, err := archivefmt.Open(format, f, fi.Size(), pwFn)
	if err != nil {
		s.close()
		return nil, nil, err
	}

	s.cat = catalog.New(reader)
	s.cache = entrycache.New(s.cat, s.tmp.Root)
	s.redirector = execredirect.New(s.cat, s.tmp.ExecutablesRoot, s.cache.DecoderLock())

	ns := namespace.New(s.cat, fi.Size())
	handles := handle.NewFactory(s.cat, s.cache, s.redirector)
	d := dispatch.New(s.cat, ns, handles)

	log.WithField("archive", cfg.ArchivePath).
		WithField("size", humanize.Bytes(uint64(fi.Size()))).
		Info("archive opened")

	return s, d, nil
}

// RunExplicit implements spec.md §4.H for an explicitly named mount
// point, blocking until the mount is unmounted.
func RunExplicit(cfg config.Config, passwordFn PasswordProvider) error {
	s, d, err := open(cfg, passwordFn)
	if err != nil {
		return err
	}
	defer s.close()

	return runHost(d, cfg.MountPoint)
}

// RunDragAndDrop implements spec.md §4.H's drag-and-drop mode: try
// each candidate mount point in turn until one succeeds.
func RunDragAndDrop(cfg config.Config, passwordFn PasswordProvider) error {
	var lastErr error
	for _, mp := range config.DragAndDropMountPoints() {
		attempt := cfg
		attempt.MountPoint = mp
		s, d, err := open(attempt, passwordFn)
		if err != nil {
			return err // archive itself is bad; no mount point will help
		}
		err = runHost(d, mp)
		s.close()
		if err == nil {
			return nil
		}
		log.WithField("mountpoint", mp).WithField("err", err).Debug("mount point unavailable, trying next")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("mountlib: no drag-and-drop mount point was attempted")
	}
	return fmt.Errorf("mountlib: no mount point available: %w", lastErr)
}

func runHost(d *dispatch.Dispatcher, mountPoint string) error {
	host := fuse.NewFileSystemHost(d)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		log.Info("shutdown signal received, unmounting")
		host.Unmount()
	}()

	log.WithField("mountpoint", mountPoint).Info("mounting")
	ok := host.Mount(mountPoint, nil)
	if !ok {
		return fmt.Errorf("mountlib: failed to mount at %s", mountPoint)
	}
	return nil
}
