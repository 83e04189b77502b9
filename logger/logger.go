// Package logger builds the zap loggers used by kvquery commands.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the format and level of a command's logger. Format is
// one of auto, console, json or logfmt; auto picks console output on a
// terminal and JSON elsewhere.
type Config struct {
	Format string        `toml:"format"`
	Level  zapcore.Level `toml:"level"`
}

// NewConfig returns a Config logging at info level in the auto format.
func NewConfig() Config {
	return Config{Format: "auto", Level: zapcore.InfoLevel}
}

// New returns a console logger writing every level to w.
func New(w io.Writer) *zap.Logger {
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	))
}

// New returns a logger writing to w at the configured level and format.
func (c *Config) New(w io.Writer) (*zap.Logger, error) {
	var encoder zapcore.Encoder
	switch format := c.format(w); format {
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig())
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig())
	case "logfmt":
		encoder = zaplogfmt.NewEncoder(encoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return zap.New(zapcore.NewCore(
		encoder,
		zapcore.Lock(zapcore.AddSync(w)),
		c.Level,
	)), nil
}

// format resolves "auto" to console output on a terminal and JSON elsewhere.
func (c *Config) format(w io.Writer) string {
	if c.Format != "auto" && c.Format != "" {
		return c.Format
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return "console"
	}
	return "json"
}

func encoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}
	return config
}
