package logger

import (
	"time"
)

// LogAndMeasureExecutionTime logs at debug level that operation started and
// returns a function that logs how long it took. The validator uses it to
// time full chain walks:
//
//	onEnd := logger.LogAndMeasureExecutionTime(log, "Incremental.Validate full walk")
//	defer onEnd()
func LogAndMeasureExecutionTime(log *Logger, operation string) (onEnd func()) {
	start := time.Now()
	log.Debugf("%s started", operation)
	return func() {
		log.Debugf("%s finished in %s", operation, time.Since(start))
	}
}
