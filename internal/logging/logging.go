// Package logging configures the jwalterweatherman notepad shared by every
// binary in the repository.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Init sets the stdout threshold from a textual level. Unknown levels fall
// back to info.
func Init(level string) jww.Threshold {
	threshold := ParseLevel(level)
	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	jww.SetFlags(0)
	return threshold
}

// ParseLevel maps a level name to a jww threshold.
func ParseLevel(level string) jww.Threshold {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return jww.LevelTrace
	case "debug":
		return jww.LevelDebug
	case "warn", "warning":
		return jww.LevelWarn
	case "error":
		return jww.LevelError
	case "critical":
		return jww.LevelCritical
	case "fatal":
		return jww.LevelFatal
	default:
		return jww.LevelInfo
	}
}

// ToFile sends log output to path instead of stdout. An empty path discards
// logs and "-" keeps stdout. The returned closer releases the file.
func ToFile(path string) (io.Closer, error) {
	switch path {
	case "-":
		return io.NopCloser(nil), nil
	case "":
		jww.SetStdoutOutput(io.Discard)
		jww.SetLogOutput(io.Discard)
		return io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening log file")
	}
	jww.SetStdoutOutput(io.Discard)
	jww.SetLogOutput(f)
	return f, nil
}
