// Package common holds helpers shared by the murmur packages and their tests.
package common

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// TestLogLevelEnv names the environment variable that overrides the level of
// the test loggers.
const TestLogLevelEnv = "MURMUR_TEST_LOG"

// testLoggerAdapter maps log output onto testing.TB.Log, so logging only shows
// for failed tests or with -v.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	if len(d) > 0 && d[len(d)-1] == '\n' {
		d = d[:len(d)-1]
	}
	if a.prefix != "" {
		l := a.prefix + ": " + string(d)
		a.t.Log(l)
		return len(l), nil
	}
	a.t.Log(string(d))
	return len(d), nil
}

// NewTestLogger returns a logrus Logger writing into t.Log at the given level,
// unless MURMUR_TEST_LOG holds a valid level.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = testLevel(level)
	return logger
}

// NewTestEntry is NewTestLogger wrapped in an Entry tagged with prefix.
func NewTestEntry(t testing.TB, level logrus.Level, prefix string) *logrus.Entry {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t, prefix: prefix}
	logger.Level = testLevel(level)
	return logrus.NewEntry(logger)
}

func testLevel(def logrus.Level) logrus.Level {
	if env := os.Getenv(TestLogLevelEnv); env != "" {
		if l, err := logrus.ParseLevel(env); err == nil {
			return l
		}
	}
	return def
}
