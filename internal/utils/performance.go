package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowOperationThreshold is how long an operation may run before its
// completion is logged at warn instead of debug.
const slowOperationThreshold = 30 * time.Second

// OperationTimer provides a defer-friendly way to measure operation duration.
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > slowOperationThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
	}
}
