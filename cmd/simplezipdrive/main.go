// Command simplezipdrive mounts a ZIP, 7Z or RAR archive as a
// read-only drive, either at an explicitly named mount point or, in
// drag-and-drop mode, at the first available drive letter out of
// M:\, N:\, O:\, P:\, Q:\ (spec.md §4.H).
package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drpetersonfernandes/simplezipdrive/internal/config"
	"github.com/drpetersonfernandes/simplezipdrive/internal/corelog"
	"github.com/drpetersonfernandes/simplezipdrive/internal/mountlib"
)

var log = corelog.For("cmd")

var (
	flagVerbose  bool
	flagPassword string
)

func main() {
	root := &cobra.Command{
		Use:   "simplezipdrive <archive> [mountpoint]",
		Short: "Mount a ZIP, 7Z or RAR archive as a read-only drive",
		Long: `
simplezipdrive mounts the contents of a ZIP, 7Z or RAR archive onto a
filesystem mount point without ever extracting the whole archive to disk.

Given an explicit mount point, it mounts there and blocks until
unmounted. Given only an archive path, it tries each of M:, N:, O:,
P:, Q: in turn until one is free.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runMount,
	}
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.Flags().StringVarP(&flagPassword, "password", "p", "", "password for an encrypted archive")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		pauseIfInteractive()
		os.Exit(1)
	}
}

func runMount(cmd *cobra.Command, args []string) error {
	corelog.SetVerbose(flagVerbose)

	cfg := config.Config{
		ArchivePath: args[0],
		Verbose:     flagVerbose,
		Password:    flagPassword,
	}
	if len(args) == 2 {
		cfg.MountPoint = args[1]
	}

	passwordFn := func() (string, error) {
		if cfg.Password != "" {
			return cfg.Password, nil
		}
		return promptPassword()
	}

	var err error
	if cfg.DragAndDrop() {
		log.Info("no mount point given, trying drag-and-drop mount points")
		err = mountlib.RunDragAndDrop(cfg, passwordFn)
	} else {
		err = mountlib.RunExplicit(cfg, passwordFn)
	}
	if err != nil {
		pauseIfInteractive()
		return err
	}
	return nil
}

// promptPassword is the default, interactive password provider: it is
// only reached when no -p flag was given and the archive decoder has
// already reported that an entry is encrypted.
func promptPassword() (string, error) {
	if !isInteractive() {
		return "", nil
	}
	fmt.Fprint(os.Stderr, "archive password: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimNewline(line), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// pauseIfInteractive waits for a keypress before the process exits,
// so a user who launched simplezipdrive by double-clicking it (rather
// than from an existing console) gets to read the error before the
// window closes. Skipped when stdin isn't a real console, e.g. when
// run from CI or with output redirected.
func pauseIfInteractive() {
	if !isInteractive() {
		return
	}
	fmt.Fprintln(os.Stderr, "press enter to exit...")
	bufio.NewReader(os.Stdin).ReadString('\n')
}
