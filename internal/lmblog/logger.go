// Package lmblog provides structured logging for the evaluation path.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the hot evaluation path (structured fields)
//   - SugaredLogger: printf-style logging for CLI/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package lmblog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EvalMeta identifies the evaluation an evaluation-path log line belongs to.
type EvalMeta struct {
	EvalID string
	Mode   string // "eval" or "serve"
}

// Logger wraps zap.Logger with evaluation context. Every entry carries
// eval_id and mode fields.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a logger tagged with meta, writing JSON to os.Stderr.
func New(meta EvalMeta) *Logger {
	return newWithWriter(meta, os.Stderr)
}

// WithOutput returns a new logger with a different output writer, for
// tests that want to capture or discard output.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := jsonCore(w)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

func jsonCore(w io.Writer) zapcore.Core {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), zapcore.DebugLevel)
}

func newWithWriter(meta EvalMeta, w io.Writer) *Logger {
	core := jsonCore(w)
	fields := []zap.Field{zap.String("eval_id", meta.EvalID)}
	if meta.Mode != "" {
		fields = append(fields, zap.String("mode", meta.Mode))
	}
	return &Logger{zap: zap.New(core).With(fields...)}
}

// Discard returns a logger that writes nowhere, for tests that don't care
// about log output.
func Discard() *Logger {
	return newWithWriter(EvalMeta{EvalID: "-"}, io.Discard)
}

// Trace logs below Debug for the evaluation path. zap has no native trace
// level, so this is Debug with a trace marker field set.
func (l *Logger) Trace(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields), zap.Bool("trace", true))
}

func (l *Logger) Debug(message string, fields map[string]any) { l.zap.Debug(message, zap.Any("fields", fields)) }
func (l *Logger) Info(message string, fields map[string]any)  { l.zap.Info(message, zap.Any("fields", fields)) }
func (l *Logger) Warn(message string, fields map[string]any)  { l.zap.Warn(message, zap.Any("fields", fields)) }
func (l *Logger) Error(message string, fields map[string]any) { l.zap.Error(message, zap.Any("fields", fields)) }

// Sugar returns a SugaredLogger for printf/keyword-style logging, used by
// CLI/debug surfaces and ambient (non-correctness-path) observability.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

func (s *SugaredLogger) Debugf(template string, args ...any) { s.sugar.Debugf(template, args...) }
func (s *SugaredLogger) Infof(template string, args ...any)  { s.sugar.Infof(template, args...) }
func (s *SugaredLogger) Warnf(template string, args ...any)  { s.sugar.Warnf(template, args...) }
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }

// Warnw logs a warning with structured key-value pairs.
func (s *SugaredLogger) Warnw(message string, kv ...any) { s.sugar.Warnw(message, kv...) }

// Infow logs an info message with structured key-value pairs.
func (s *SugaredLogger) Infow(message string, kv ...any) { s.sugar.Infow(message, kv...) }

// Errorw logs an error with structured key-value pairs.
func (s *SugaredLogger) Errorw(message string, kv ...any) { s.sugar.Errorw(message, kv...) }

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
