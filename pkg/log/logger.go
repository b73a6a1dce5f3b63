package log

import (
	"fmt"
	"sync"

	"github.com/YuminosukeSato/co2stack/pkg/errors"
)

var (
	globalMu       sync.RWMutex
	globalProvider LoggerProvider
)

// SetupLogger installs a zerolog provider on stderr as the global provider
// and routes errors.Warn through it.
func SetupLogger(loglevel string) {
	p := NewZerologProvider(ToLogLevel(loglevel))
	SetProvider(p)
	errors.SetZerologWarnFunc(warningLogger(p))
}

// SetProvider replaces the global provider.
func SetProvider(p LoggerProvider) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalProvider = p
}

func provider() LoggerProvider {
	globalMu.RLock()
	p := globalProvider
	globalMu.RUnlock()
	if p != nil {
		return p
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalProvider == nil {
		globalProvider = NewZerologProvider(LevelInfo)
	}
	return globalProvider
}

// GetLogger returns the default logger of the global provider.
func GetLogger() Logger {
	return provider().GetLogger()
}

// GetLoggerWithName returns a named logger of the global provider.
func GetLoggerWithName(name string) Logger {
	return provider().GetLoggerWithName(name)
}

// ToLogLevel parses "debug", "info", "warn" or "error".
func ToLogLevel(level string) Level {
	switch level {
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}
