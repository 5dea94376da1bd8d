package log

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Level names follow logrus.ParseLevel.
func New(out io.Writer, level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logger, err
	}
	logger.SetLevel(lvl)
	return logger, nil
}

// BadgerLogrusAdapter implements badger.Logger on top of a logrus entry.
// Badger's info output (compaction, value log replay) is logged at debug level.
type BadgerLogrusAdapter struct {
	entry *logrus.Entry
}

// NewBadgerLogrusAdapter creates a new adapter tagged with component=badger
func NewBadgerLogrusAdapter(entry *logrus.Entry) *BadgerLogrusAdapter {
	return &BadgerLogrusAdapter{entry: entry.WithField("component", "badger")}
}

// Errorf logs an error message
func (l *BadgerLogrusAdapter) Errorf(f string, v ...interface{}) { l.entry.Errorf(trim(f), v...) }

// Warningf logs a warning message
func (l *BadgerLogrusAdapter) Warningf(f string, v ...interface{}) { l.entry.Warnf(trim(f), v...) }

// Infof logs badger info messages at debug level
func (l *BadgerLogrusAdapter) Infof(f string, v ...interface{}) { l.entry.Debugf(trim(f), v...) }

// Debugf logs badger debug messages at trace level
func (l *BadgerLogrusAdapter) Debugf(f string, v ...interface{}) { l.entry.Tracef(trim(f), v...) }

// badger terminates its format strings with a newline
func trim(f string) string {
	return strings.TrimRight(f, "\n")
}
