// Package logx configures the process-wide zerolog logger.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and format. Embedded in a struct processed
// by envconfig it reads <PREFIX>_DEBUG and <PREFIX>_PRETTY.
type Config struct {
	Debug  bool
	Pretty bool
}

func safe(opts ...Config) Config {
	if len(opts) == 0 {
		return Config{}
	}
	return opts[0]
}

// Init replaces the global logger. Output goes to stderr so command
// results on stdout stay machine-readable.
func Init(opts ...Config) {
	log.Logger = New(os.Stderr, opts...)
}

// New builds a logger writing to w with the same settings Init applies.
func New(w io.Writer, opts ...Config) zerolog.Logger {
	conf := safe(opts...)

	var logger zerolog.Logger
	if conf.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(w).With().Timestamp().Logger()
	}

	if conf.Debug {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	return logger.With().Caller().Logger()
}
