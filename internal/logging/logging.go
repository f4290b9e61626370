// Package logging configures the structured logger shared by the datastore
// and proxy processes. It wraps logrus instead of hand-rolling level/color
// handling, giving every component a *logrus.Entry pre-tagged with its
// component name.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a fresh logrus logger (stderr, the given level, full-timestamp
// text format) and returns a component-scoped entry. component is attached
// to every line the entry (or its children via WithField) writes.
func New(component string, level logrus.Level) *logrus.Entry {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetLevel(level)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return base.WithField("component", component)
}

// ParseLevel is a thin wrapper around logrus.ParseLevel with an
// info-on-failure default, used by CLI flag binding.
func ParseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
