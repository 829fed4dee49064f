package storage

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// badgerLogger routes badger's printf-style logging into logr
type badgerLogger struct {
	log logr.Logger
}

func newBadgerLogger(log logr.Logger) *badgerLogger {
	return &badgerLogger{log: log}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(nil, l.msg(format, args))
}

// Warningf maps to info; logr has no warning level
func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Info(l.msg(format, args))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.V(1).Info(l.msg(format, args))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.V(2).Info(l.msg(format, args))
}

func (l *badgerLogger) msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
