// Package logger builds the process-wide zerolog root logger. Services
// receive child loggers tagged with their component name.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the root logger. Development environments get a colorized
// console writer; everything else logs JSON lines for ingestion.
func New(environment string, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if environment == "development" {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		logger = zerolog.New(writer)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
