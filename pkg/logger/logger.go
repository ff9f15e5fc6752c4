// Package logger provides the process-wide structured logger.
//
// Production environments log JSON to stderr; everything else uses the
// zerolog console writer. Call Init once at startup before any other
// function in this package.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

const EnvProduction = "production"

var log zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Init configures the global logger for the given environment.
func Init(environment string, debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	if environment == EnvProduction {
		log = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
		return
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(console).Level(level).With().Timestamp().Logger()
}

func Debug(msg string, keyvals ...any) {
	withFields(log.Debug(), keyvals).Msg(msg)
}

func Info(msg string, keyvals ...any) {
	withFields(log.Info(), keyvals).Msg(msg)
}

func Warn(msg string, keyvals ...any) {
	withFields(log.Warn(), keyvals).Msg(msg)
}

func Error(msg string, err error, keyvals ...any) {
	withFields(log.Error().Err(err), keyvals).Msg(msg)
}

// Fatal logs the message and terminates the process.
func Fatal(msg string, err error, keyvals ...any) {
	withFields(log.Fatal().Err(err), keyvals).Msg(msg)
}

func withFields(ev *zerolog.Event, keyvals []any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keyvals[i+1])
	}
	return ev
}
