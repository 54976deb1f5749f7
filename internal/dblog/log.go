// Package dblog provides the structured logger shared by the pager, the
// btree and the catalog. It is for diagnostics only — never for control
// flow, per the storage engine's error-handling design.
package dblog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger writing to stderr at the given level. An unparsable
// level falls back to info, matching logrus's own CLI-flag convention.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// Silent returns a logger that only emits errors, for use in tests so
// routine page-allocation and split/compaction chatter doesn't clutter -v
// test output.
func Silent() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.ErrorLevel)
	return l
}
