// Package invariant reports programming errors. In fatal mode a violation
// panics; otherwise it is logged and execution continues.
package invariant

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

var fatal atomic.Bool

func init() {
	fatal.Store(fatalDefault)
}

// SetFatal toggles panicking on violations and returns the previous mode.
func SetFatal(v bool) bool {
	return fatal.Swap(v)
}

// Fatal reports whether violations panic.
func Fatal() bool {
	return fatal.Load()
}

// Check reports a violation when cond is false.
func Check(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if fatal.Load() {
		panic("invariant violated: " + msg)
	}
	slog.Error("invariant violated", "detail", msg)
}
