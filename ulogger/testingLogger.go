package ulogger

import (
	"sync/atomic"

	"github.com/ordishs/gocore"
)

// TestingT is the part of testing.TB the TestingLogger writes to.
type TestingT interface {
	Helper()
	Logf(format string, args ...any)
	Cleanup(func())
}

// TestingLogger writes every line at or above its level to the test log, so a failing test
// shows what the node logged on the way. Lines logged after the test finished, for example
// by a delivery goroutine, are dropped.
type TestingLogger struct {
	t       TestingT
	service string
	level   int
	done    *atomic.Bool
}

// NewTestingLogger returns a logger for t at level ("DEBUG", "INFO", "WARN" or "ERROR").
func NewTestingLogger(t TestingT, level string) *TestingLogger {
	done := &atomic.Bool{}
	t.Cleanup(func() { done.Store(true) })

	return &TestingLogger{
		t:     t,
		level: int(gocore.NewLogLevelFromString(level)),
		done:  done,
	}
}

func (l *TestingLogger) LogLevel() int {
	return l.level
}

func (l *TestingLogger) SetLogLevel(level string) {
	l.level = int(gocore.NewLogLevelFromString(level))
}

// New returns a logger for service writing to the same test.
func (l *TestingLogger) New(service string, _ ...Option) Logger {
	return &TestingLogger{t: l.t, service: service, level: l.level, done: l.done}
}

func (l *TestingLogger) Duplicate(_ ...Option) Logger {
	return &TestingLogger{t: l.t, service: l.service, level: l.level, done: l.done}
}

func (l *TestingLogger) Debugf(format string, args ...interface{}) {
	l.log(int(gocore.DEBUG), "DEBUG", format, args...)
}

func (l *TestingLogger) Infof(format string, args ...interface{}) {
	l.log(int(gocore.INFO), "INFO", format, args...)
}

func (l *TestingLogger) Warnf(format string, args ...interface{}) {
	l.log(int(gocore.WARN), "WARN", format, args...)
}

func (l *TestingLogger) Errorf(format string, args ...interface{}) {
	l.log(int(gocore.ERROR), "ERROR", format, args...)
}

func (l *TestingLogger) Fatalf(format string, args ...interface{}) {
	l.log(int(gocore.FATAL), "FATAL", format, args...)
}

func (l *TestingLogger) log(level int, name string, format string, args ...interface{}) {
	if level < l.level || l.done.Load() {
		return
	}

	l.t.Helper()

	prefix := "[" + name + "] "
	if l.service != "" {
		prefix += l.service + ": "
	}

	l.t.Logf(prefix+format, args...)
}
