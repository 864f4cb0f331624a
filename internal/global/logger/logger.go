package logger

import (
	"gitlab.com/arbfn-2025.net/internal/adapter/logging"
	"gitlab.com/arbfn-2025.net/internal/config"
)

// Logger is the process-wide logger; the CLI replaces it once the
// configuration has been read.
var Logger = logging.NewZapLogger()

func Configure(cfg *config.LogConfig) {
	Logger = logging.NewConfiguredLogger(cfg)
}

func Info(msg string, args ...interface{}) {
	Logger.Info(msg, args...)
}

func Error(msg string, args ...interface{}) {
	Logger.Error(msg, args...)
}

func Debug(msg string, args ...interface{}) {
	Logger.Debug(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	Logger.Warn(msg, args...)
}

func Sync() {
	Logger.Sync()
}
