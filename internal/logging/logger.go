package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	Format     string // json or text
	Output     string // stdout, stderr or file
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. Unknown levels fall back to info.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.SetOutput(output(opts))
	return logger
}

func output(opts Options) io.Writer {
	switch opts.Output {
	case "stderr":
		return os.Stderr
	case "file":
		name := opts.Filename
		if name == "" {
			name = "logs/gold-monitor.log"
		}
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "create log directory: %v, logging to stdout\n", err)
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   name,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 10),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
	default:
		return os.Stdout
	}
}

// Component returns an entry tagged with the subsystem name.
func Component(log logrus.FieldLogger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}
