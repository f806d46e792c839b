package logger

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sungwon/newsletter/internal/config"
)

const (
	defaultLogFile    = "logs/newsletter.log"
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// rotatingFile opens the log file named in cfg behind a lumberjack rotator.
// Missing limits fall back to package defaults and the parent directory is
// created on demand. Rotated segments are compressed.
func rotatingFile(cfg config.LoggingConfig) io.Writer {
	path := cfg.FilePath
	if path == "" {
		path = defaultLogFile
	}
	size := cfg.MaxSizeMB
	if size <= 0 {
		size = defaultMaxSizeMB
	}
	backups := cfg.MaxFiles
	if backups <= 0 {
		backups = defaultMaxBackups
	}

	// lumberjack creates the directory itself, but only on first write.
	// Creating it here surfaces permission problems at startup instead.
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return os.Stderr
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    size,
		MaxBackups: backups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	}
}
