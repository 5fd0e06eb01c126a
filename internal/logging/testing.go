package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records entries in memory, for handler and
// service tests that assert on what was logged.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger records every level, including trace.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

func (t *TestLogger) All() []observer.LoggedEntry { return t.observed.All() }

func (t *TestLogger) Reset() { t.observed.TakeAll() }

// matching returns entries at level whose message contains substr.
func (t *TestLogger) matching(level zapcore.Level, substr string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if len(t.matching(level, substr)) == 0 {
		tb.Errorf("no %v entry containing %q; got %d entries: %+v", level, substr, t.observed.Len(), t.observed.All())
	}
}

// AssertNotLogged fails tb if any entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if got := t.matching(level, substr); len(got) > 0 {
		tb.Errorf("unexpected %v entry containing %q: %+v", level, substr, got)
	}
}

// AssertField fails tb unless an entry whose message contains msg carries
// key with the expected value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, e := range t.observed.FilterMessageSnippet(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, expected) {
			return
		}
	}
	tb.Errorf("no entry %q with %s=%v", msg, key, expected)
}
