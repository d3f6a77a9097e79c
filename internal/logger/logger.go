package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
	"visiondemo/internal/config"

	"github.com/rs/zerolog"
)

// Log file names, one per level.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to per-level files and the console.
type Logger struct {
	infoLog    zerolog.Logger
	warningLog zerolog.Logger
	errorLog   zerolog.Logger
	logDir     string
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(config *config.Config) *Logger {
	if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	logger := &Logger{
		logDir: config.LogDirectory,
	}

	logger.setupLoggers()
	return logger
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	nop := zerolog.Nop()
	return &Logger{infoLog: nop, warningLog: nop, errorLog: nop}
}

// setupLoggers initializes writers and per-level loggers.
func (l *Logger) setupLoggers() {
	stdout := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	stderr := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	l.infoLog = newLevelLogger(stdout, l.openLogFile(InfoFile))
	l.warningLog = newLevelLogger(stdout, l.openLogFile(WarningFile))
	l.errorLog = newLevelLogger(stderr, l.openLogFile(ErrorFile))
}

func newLevelLogger(console io.Writer, file io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.MultiLevelWriter(console, file)).
		With().
		Timestamp().
		Str("app", "visiondemo").
		Logger()
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(name string) *os.File {
	filename := filepath.Join(l.logDir, name)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", filename, err)
	}
	return file
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLog.Info().Msg(fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.warningLog.Warn().Msg(fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.errorLog.Error().Msg(fmt.Sprintf(format, v...))
}

// RedactID shortens a secret identifier such as a session cookie so log
// lines can still be correlated without revealing the full value.
func RedactID(id string) string {
	const keep = 8
	if len(id) <= keep {
		return "***"
	}
	return id[:keep] + "…"
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	filePath := filepath.Join(l.logDir, fileName)
	if err := os.Truncate(filePath, 0); err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return fmt.Errorf("truncate %s: %w", fileName, err)
	}

	l.Info("File %s has been cleared.", fileName)
	return nil
}
