package log

import (
	"fmt"
	"strings"
	"time"
)

// Log is the structured logger every component receives. Named returns a
// child logger for one component; With returns one that carries fields on
// every entry.
type Log interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	Named(component string) Log
	With(fields ...Field) Log

	Enabled(level Level) bool
}

type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent Level = 101
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelSilent:
		return "silent"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// ParseLevel maps a config string onto a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off", "none":
		return LevelSilent, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Format selects the entry encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// ParseFormat accepts "json" or "console". The empty string is json.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatConsole:
		return f, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format %q", s)
	}
}

// Field is one typed key/value pair attached to an entry.
type Field struct {
	Key   string
	Kind  FieldKind
	Value any
}

type FieldKind uint8

const (
	KindAny FieldKind = iota
	KindBool
	KindDuration
	KindFloat64
	KindInt
	KindInt64
	KindString
	KindUint64
	KindError
)

func Bool(key string, val bool) Field {
	return Field{Key: key, Kind: KindBool, Value: val}
}

func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Kind: KindDuration, Value: val}
}

func Float64(key string, val float64) Field {
	return Field{Key: key, Kind: KindFloat64, Value: val}
}

func Int(key string, val int) Field {
	return Field{Key: key, Kind: KindInt, Value: val}
}

func Int64(key string, val int64) Field {
	return Field{Key: key, Kind: KindInt64, Value: val}
}

func String(key string, val string) Field {
	return Field{Key: key, Kind: KindString, Value: val}
}

func Uint64(key string, val uint64) Field {
	return Field{Key: key, Kind: KindUint64, Value: val}
}

// Stringer defers formatting of val until the entry is written.
func Stringer(key string, val fmt.Stringer) Field {
	return Field{Key: key, Kind: KindAny, Value: val}
}

// Error attaches err under the "error" key. A nil error is skipped.
func Error(err error) Field {
	return Field{Key: "error", Kind: KindError, Value: err}
}
