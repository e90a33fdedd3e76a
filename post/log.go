package post

import (
	"os"

	"github.com/rs/zerolog"
)

var log zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("pkg", "post").Logger()

// SetLogger overrides the package-level logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("pkg", "post").Logger()
}

func withPhase(phase string) zerolog.Logger {
	return log.With().Str("phase", phase).Logger()
}
