package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var goroutineCounter int64

// GetGoroutineCount returns the number of goroutines spawned via SafeGo since start
func GetGoroutineCount() int64 {
	return atomic.LoadInt64(&goroutineCounter)
}

// SafeGo runs fn in a goroutine with panic recovery.
// Panics are logged but don't crash the service.
//
// Example:
//
//	common.SafeGo(logger, "evictJobs", func() {
//	    evictor.RunOnce()
//	})
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	SafeGoWithRecover(logger, name, fn, nil)
}

// SafeGoWithRecover is SafeGo with a hook that receives the recovered panic value,
// so the owner of the goroutine can record the failure (e.g. fail a run).
func SafeGoWithRecover(logger arbor.ILogger, name string, fn func(), onPanic func(recovered any)) {
	atomic.AddInt64(&goroutineCounter, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stackTrace := GetStackTrace()

				if logger != nil {
					logger.Error().
						Str("goroutine", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", stackTrace).
						Msg("Recovered from panic in goroutine - continuing service operation")
				} else {
					fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, r, stackTrace)
				}

				if onPanic != nil {
					onPanic(r)
				}
			}
		}()

		fn()
	}()
}

// GetStackTrace returns the current goroutine's stack trace.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
