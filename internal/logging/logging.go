// Package logging builds the zerolog loggers shared by the binaries.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"io"
	"os"
	"strings"
)

// SeverityCritical marks events that need an operator, zerolog has no
// level above error that does not exit.
const SeverityCritical = "critical"

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
}

// New returns a JSON logger tagged with the service name. A nil writer
// logs to stdout; an unknown level falls back to info.
func New(service, level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
}

// Critical starts an error-level event flagged with severity=critical.
func Critical(l *zerolog.Logger) *zerolog.Event {
	return l.Error().Str("severity", SeverityCritical)
}
