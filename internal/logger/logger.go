// Package logger builds the zerolog loggers used by the simulator.
package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout of console output.
const TimeFormat = "2006-01-02 15:04:05"

// New creates a logger writing to w at the given level. With console set the
// output is human readable and colorized, otherwise it is JSON lines.
func New(level string, w io.Writer, console bool) zerolog.Logger {
	out := w
	if console {
		cw := zerolog.ConsoleWriter{Out: w, TimeFormat: TimeFormat}
		cw.FormatLevel = formatLevel
		out = cw
	}

	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names are info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func formatLevel(i interface{}) string {
	ll, ok := i.(string)
	if !ok {
		if i == nil {
			return "| " + colorize("???", 37) + " |"
		}
		s := strings.ToUpper(fmt.Sprintf("%s", i))
		if len(s) > 3 {
			s = s[:3]
		}
		return "| " + s + " |"
	}

	var l string
	switch ll {
	case "debug", "trace":
		l = colorize(ll, 36) // cyan
	case "info":
		l = colorize(ll, 34) // blue
	case "warn":
		l = colorize(ll, 33) // yellow
	case "error":
		l = colorize(ll, 31) // red
	case "fatal", "panic":
		l = colorize(ll, 35) // magenta
	default:
		l = colorize(ll, 37)
	}
	return fmt.Sprintf("| %s |", l)
}

func colorize(s string, color int) string {
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}
