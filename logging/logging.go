// Package logging builds zerolog loggers and adapts them to the trace sink
// used by the purger and the download pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Out replaces stdout as the console destination.
	Out io.Writer
}

// New builds a logger writing to the console and, when File is set, to a
// rotating log file. Unknown levels fall back to info.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

type adapter struct {
	l zerolog.Logger
}

// Adapt wraps a zerolog logger as a core.Logger. Key/value pairs become
// event fields; a trailing key without a value is logged under "extra".
func Adapt(l zerolog.Logger) core.Logger {
	return adapter{l: l}
}

func (a adapter) Debug(msg string, keysAndValues ...any) {
	e := a.l.Debug()
	if !e.Enabled() {
		return
	}
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		if i+1 >= len(keysAndValues) {
			e = e.Interface("extra", keysAndValues[i])
			break
		}
		switch v := keysAndValues[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		case string:
			e = e.Str(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	e.Msg(msg)
}
