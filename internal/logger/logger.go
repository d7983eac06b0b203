// Package logger provides the global zerolog logger for gantry.
//
// The orchestrator runs inside other people's test binaries, so the default
// output is a quiet console writer on stderr. File output with rotation can
// be enabled for debugging long CI runs.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log zerolog.Logger

// fileWriter is the file output for logging (with rotation).
var fileWriter *lumberjack.Logger

func init() {
	Init(os.Getenv("GANTRY_DEBUG") != "")
}

// Init initializes the global logger with console-only output.
func Init(debug bool) {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// InitWithFile initializes the logger with an additional rotated file output.
// The file receives all levels as JSON regardless of the console level.
func InitWithFile(debug bool, logsDir string) error {
	if logsDir == "" {
		Init(debug)
		return nil
	}

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, "gantry.log"),
		MaxSize:    50, // MB
		MaxAge:     7,  // days
		MaxBackups: 3,
		LocalTime:  true,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}

	Log = zerolog.New(io.MultiWriter(consoleWriter, fileWriter)).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}

// CloseFileWriter closes the file writer if one was configured.
func CloseFileWriter() error {
	if fileWriter != nil {
		err := fileWriter.Close()
		fileWriter = nil
		return err
	}
	return nil
}

// Debug logs a debug message.
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Info logs an info message.
func Info() *zerolog.Event {
	return Log.Info()
}

// Warn logs a warning message.
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error logs an error message.
func Error() *zerolog.Event {
	return Log.Error()
}
