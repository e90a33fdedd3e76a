package decode

import (
	"os"

	"github.com/rs/zerolog"
)

var log zerolog.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("pkg", "decode").Logger()

// SetLogger overrides the package-level logger, letting an embedding host
// route decode's output through its own zerolog instance.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("pkg", "decode").Logger()
}

// withPhase returns a child logger tagged with the current decode phase,
// mirroring the "header" / "parse" / "postprocess" / "sink" phase labels
// used across this repo's packages.
func withPhase(phase string) zerolog.Logger {
	return log.With().Str("phase", phase).Logger()
}
