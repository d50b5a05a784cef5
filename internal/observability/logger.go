// Package observability builds the root logger shared by the binaries.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger. With an empty path it writes
// human-readable console output to stderr; otherwise it appends JSON lines to
// the file at path.
func NewLogger(path string) (zerolog.Logger, error) {
	var out io.Writer
	if path == "" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	} else {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), err
		}
		out = file
	}
	return zerolog.New(out).With().Timestamp().Logger(), nil
}
