// Package goroutine launches background goroutines that log panics instead of
// taking the process down.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/orris-inc/subflow/internal/shared/logger"
)

// SafeGo runs fn in a new goroutine. A panic is logged with its stack under
// the given name and the goroutine exits.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer Recover(log, name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be deferred directly.
func Recover(log logger.Interface, name string) {
	if r := recover(); r != nil {
		log.Errorw("goroutine panicked",
			"goroutine", name,
			"panic", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)
	}
}
