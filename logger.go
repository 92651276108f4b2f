package qpath

import (
	"os"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

var logger atomic.Pointer[log.Logger]

func init() {
	logger.Store(log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "qpath",
		Level:  log.InfoLevel,
	}))
}

// Logger returns the package logger.
func Logger() *log.Logger {
	return logger.Load()
}

// SetLogger swaps the package logger. A nil logger is ignored.
func SetLogger(l *log.Logger) {
	if l == nil {
		return
	}
	logger.Store(l)
}

func debugEnabled() bool {
	return Logger().GetLevel() <= log.DebugLevel
}
