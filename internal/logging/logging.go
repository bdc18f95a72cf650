package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger on stdout at level. An unknown level falls back
// to info.
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
