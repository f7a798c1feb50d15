package tests

import (
	"flag"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var debug = flag.Bool("debug", false, "Enable debug mode for tests (using Zap)")

// CheckDebugLogs enables development zap logging for the test when -debug is set
func CheckDebugLogs(t *testing.T) {
	if debug != nil && *debug {
		logger, err := zap.NewDevelopment(zap.AddStacktrace(zap.ErrorLevel))
		if err != nil {
			t.Fatal(err)
		}
		restore := zap.ReplaceGlobals(logger)
		t.Cleanup(func() {
			logger.Sync()
			restore()
		})
	}
}

// ObserveLogs captures the global logger entries at or above level until the test ends
func ObserveLogs(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}
