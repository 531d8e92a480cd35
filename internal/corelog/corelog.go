// Package corelog provides the structured, per-component loggers used
// throughout the core. Every component gets its own named logger via
// For, carrying a "component" field, the same way the teacher's
// fs.Debugf/fs.Errorf free functions always took a subject as their
// first argument.
package corelog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	base   = logrus.New()
	levelM sync.Mutex
)

func init() {
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	base.SetLevel(logrus.InfoLevel)
}

// SetVerbose raises or lowers the base logging level. Called once
// from the CLI after flag parsing.
func SetVerbose(verbose bool) {
	levelM.Lock()
	defer levelM.Unlock()
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
}

// For returns a logger scoped to a single component ("catalog",
// "entrycache", "dispatch", ...).
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}

// Reportable tags a log entry as eligible for remote error reporting
// (the transport itself is out of scope, see spec.md §1/§7); user
// errors stay unreportable by omitting this field.
func Reportable(e *logrus.Entry) *logrus.Entry {
	return e.WithField("reportable", true)
}
