package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a supported logging granularity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format is a supported logger output encoding.
type Format string

const (
	FormatConsole    Format = "console"
	FormatStructured Format = "structured"
)

var levelMapping = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

// ParseLevel normalizes raw and reports whether it names a supported level.
func ParseLevel(raw string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := levelMapping[l]; !ok {
		return "", fmt.Errorf("unsupported log level: %s", raw)
	}
	return l, nil
}

// ParseFormat normalizes raw and reports whether it names a supported format.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatConsole, FormatStructured:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported log format: %s", raw)
	}
}

// Factory builds zap loggers with consistent configuration. Logs go to the
// configured writer (stderr by default) so stdout stays free for summaries.
type Factory struct {
	writer io.Writer
}

func NewFactory(w io.Writer) *Factory {
	if w == nil {
		w = os.Stderr
	}
	return &Factory{writer: w}
}

// CreateLogger produces a logger honoring the requested level and format.
func (f *Factory) CreateLogger(level Level, format Format) (*zap.Logger, error) {
	zapLevel, ok := levelMapping[level]
	if !ok {
		return nil, fmt.Errorf("unsupported log level: %s", level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch format {
	case FormatStructured:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole:
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(f.writer), zap.NewAtomicLevelAt(zapLevel))
	return zap.New(core), nil
}

// OrNop returns logger, or a no-op logger when logger is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
