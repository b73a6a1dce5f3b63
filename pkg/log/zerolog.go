package log

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// ZerologProvider implements LoggerProvider on top of rs/zerolog.
type ZerologProvider struct {
	mu    sync.RWMutex
	base  zerolog.Logger
	level Level
}

// NewZerologProvider creates a provider writing JSON lines to stderr.
func NewZerologProvider(level Level) *ZerologProvider {
	return NewZerologProviderWithWriter(os.Stderr, level)
}

// NewZerologProviderWithWriter creates a provider writing JSON lines to w.
func NewZerologProviderWithWriter(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{
		base:  zerolog.New(w).With().Timestamp().Logger(),
		level: level,
	}
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{provider: p, ctx: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{provider: p, ctx: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider. Loggers already handed out follow the
// new level.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.level = level
}

func (p *ZerologProvider) currentLevel() Level {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

type zerologLogger struct {
	provider *ZerologProvider
	ctx      zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) {
	l.emit(LevelDebug, msg, fields)
}

func (l *zerologLogger) Info(msg string, fields ...any) {
	l.emit(LevelInfo, msg, fields)
}

func (l *zerologLogger) Warn(msg string, fields ...any) {
	l.emit(LevelWarn, msg, fields)
}

func (l *zerologLogger) Error(msg string, fields ...any) {
	l.emit(LevelError, msg, fields)
}

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{provider: l.provider, ctx: l.ctx.With().Fields(fields).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= l.provider.currentLevel()
}

func (l *zerologLogger) emit(level Level, msg string, fields []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.ctx.Debug()
	case LevelInfo:
		ev = l.ctx.Info()
	case LevelWarn:
		ev = l.ctx.Warn()
	default:
		ev = l.ctx.Error()
	}
	if level == LevelError {
		var err error
		err, fields = splitError(fields)
		if err != nil {
			ev = ev.Err(err).Str(StacktraceKey, extractStacktrace(err))
		}
	}
	ev.Fields(fields).Msg(msg)
}

// warningLogger routes errors.Warn into the given logger. Warning values that
// implement zerolog.LogObjectMarshaler keep their structure.
func warningLogger(p *ZerologProvider) func(error) {
	lg := p.base.With().Str(ComponentKey, "warnings").Logger()
	return func(w error) {
		if p.currentLevel() > LevelWarn {
			return
		}
		ev := lg.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	}
}
