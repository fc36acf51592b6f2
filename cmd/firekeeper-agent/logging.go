package main

import (
	"io"
	"strings"

	"github.com/MacJediWizard/firekeeper/internal/config"
	"github.com/rs/zerolog"
)

// severityLevels maps zerolog levels to Cloud Logging severities.
var severityLevels = map[zerolog.Level]string{
	zerolog.TraceLevel: "DEBUG",
	zerolog.DebugLevel: "DEBUG",
	zerolog.InfoLevel:  "INFO",
	zerolog.WarnLevel:  "WARNING",
	zerolog.ErrorLevel: "ERROR",
	zerolog.FatalLevel: "CRITICAL",
	zerolog.PanicLevel: "ALERT",
}

// newLogger builds the root logger. Production emits JSON with a Cloud Logging
// severity field; other environments use the console writer.
func newLogger(out io.Writer, env config.Environment, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if !env.IsProduction() {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).
			Level(lvl).
			With().Timestamp().Str("version", Version).Logger()
	}

	zerolog.LevelFieldName = "severity"
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if s, ok := severityLevels[l]; ok {
			return s
		}
		return strings.ToUpper(l.String())
	}
	zerolog.TimestampFieldName = "time"

	return zerolog.New(out).
		Level(lvl).
		With().Timestamp().Str("version", Version).Logger()
}
