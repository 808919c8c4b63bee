package config

import (
	"os"
	"path/filepath"

	"github.com/rshade/lcamatch/internal/logging"
)

// ToLoggingConfig converts LoggingConfig into logging.Config.
//
// If File is set the output becomes "file", otherwise stderr.
func (lc LoggingConfig) ToLoggingConfig() logging.Config {
	output := logging.OutputStderr
	if lc.File != "" {
		output = logging.OutputFile
	}
	return logging.Config{
		Level:  lc.Level,
		Format: lc.Format,
		Output: output,
		File:   lc.File,
	}
}

// EnsureLogDir creates the directory holding the configured log file.
func (lc LoggingConfig) EnsureLogDir() error {
	if lc.File == "" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(lc.File), 0o700)
}
