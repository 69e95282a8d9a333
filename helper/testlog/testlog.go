// Package testlog creates hclog loggers backed by testing.T so test output
// stays attached to the test that produced it.
package testlog

import (
	"io"

	hclog "github.com/hashicorp/go-hclog"
)

// LogPrinter is the methods of testing.T (or testing.B) needed by the test
// logger.
type LogPrinter interface {
	Logf(format string, args ...interface{})
}

// writer implements io.Writer on top of a LogPrinter.
type writer struct {
	t LogPrinter
}

func (w *writer) Write(p []byte) (n int, err error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// NewWriter returns an io.Writer backed by a LogPrinter.
func NewWriter(t LogPrinter) io.Writer {
	return &writer{t}
}

// HCLogger returns a new test logger at trace level.
func HCLogger(t LogPrinter) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Level:           hclog.Trace,
		Output:          NewWriter(t),
		IncludeLocation: true,
	})
}
