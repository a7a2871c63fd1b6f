package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

// Options configures New. A nil Output writes to stderr.
type Options struct {
	Level  Level
	Format Format
	Output io.Writer
}

// Logger adapts a zap.Logger to Log. Children share the parent's level.
type Logger struct {
	zl    *zap.Logger
	level zap.AtomicLevel
}

func New(opts Options) (*Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	switch opts.Format {
	case FormatJSON, "":
		enc = zapcore.NewJSONEncoder(encCfg)
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := zap.NewAtomicLevelAt(toZapLevel(opts.Level))
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), level)
	return &Logger{zl: zap.New(core), level: level}, nil
}

// NewWithCore wraps an existing zap core, as zaptest/observer provides.
func NewWithCore(core zapcore.Core, level Level) *Logger {
	return &Logger{
		zl:    zap.New(core),
		level: zap.NewAtomicLevelAt(toZapLevel(level)),
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		zl:    zap.NewNop(),
		level: zap.NewAtomicLevelAt(zapcore.InvalidLevel),
	}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.write(LevelError, msg, fields) }

func (l *Logger) Named(component string) Log {
	return &Logger{zl: l.zl.Named(component), level: l.level}
}

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zl: l.zl.With(toZapFields(fields)...), level: l.level}
}

// Enabled reports whether entries at level would be written. Callers use
// it to skip building expensive fields.
func (l *Logger) Enabled(level Level) bool {
	return level != LevelSilent && l.level.Enabled(toZapLevel(level))
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) write(level Level, msg string, fields []Field) {
	if !l.Enabled(level) {
		return
	}
	if ce := l.zl.Check(toZapLevel(level), msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelSilent:
		return zapcore.InvalidLevel
	default:
		return zapcore.InfoLevel
	}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		switch f.Kind {
		case KindBool:
			out = append(out, zap.Bool(f.Key, f.Value.(bool)))
		case KindDuration:
			out = append(out, zap.Duration(f.Key, f.Value.(time.Duration)))
		case KindFloat64:
			out = append(out, zap.Float64(f.Key, f.Value.(float64)))
		case KindInt:
			out = append(out, zap.Int(f.Key, f.Value.(int)))
		case KindInt64:
			out = append(out, zap.Int64(f.Key, f.Value.(int64)))
		case KindString:
			out = append(out, zap.String(f.Key, f.Value.(string)))
		case KindUint64:
			out = append(out, zap.Uint64(f.Key, f.Value.(uint64)))
		case KindError:
			if err, ok := f.Value.(error); ok && err != nil {
				out = append(out, zap.NamedError(f.Key, err))
			}
		default:
			if s, ok := f.Value.(fmt.Stringer); ok {
				out = append(out, zap.Stringer(f.Key, s))
			} else {
				out = append(out, zap.Any(f.Key, f.Value))
			}
		}
	}
	return out
}
