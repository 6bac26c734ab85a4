// Package logging provides a thin leveled-logging wrapper in the style of
// the teacher's fs.Infof/fs.Debugf/fs.Errorf call sites (seen throughout
// backend/cache), backed by logrus — a direct rclone go.mod dependency the
// retained pack source never exercises itself.
package logging

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is a printf-style leveled logger scoped to a subject, mirroring
// how the teacher tags log lines with the Fs or Object they concern
// (fs.Infof(f, "..."), fs.Errorf(o, "...")).
type Logger struct {
	entry *logrus.Entry
}

// std is the package-level logrus instance; tests can point it elsewhere
// via SetOutput on the standard logrus logger if needed.
var std = logrus.StandardLogger()

// New returns a Logger tagged with subject, e.g. a component name or a
// hash, the way the teacher tags log lines with the Fs/Object they concern.
func New(subject string) Logger {
	return Logger{entry: std.WithField("subject", subject)}
}

func (l Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debug(fmt.Sprintf(format, args...))
}

func (l Logger) Infof(format string, args ...interface{}) {
	l.entry.Info(fmt.Sprintf(format, args...))
}

func (l Logger) Errorf(format string, args ...interface{}) {
	l.entry.Error(fmt.Sprintf(format, args...))
}

// With returns a Logger with an additional structured field, for call
// sites that want to attach e.g. a hash or fetch correlation ID without
// folding it into the format string.
func (l Logger) With(key string, value interface{}) Logger {
	return Logger{entry: l.entry.WithField(key, value)}
}
