package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the standard logger at both stdout and a size-rotated log
// file. An empty dir disables file logging.
func Setup(dir string) error {
	if dir == "" {
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, fmt.Sprintf("backend-%s.log", time.Now().Format("2006-01-02"))),
		MaxSize:    50, // MB
		MaxBackups: 7,
		MaxAge:     28, // days
		Compress:   true,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rotating))
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	return nil
}
