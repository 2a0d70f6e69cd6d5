// Package pmlog configures the daemon's logrus handlers: a timestamped
// text formatter to stderr and a size-rotated file handler, replacing the
// original's logging.handlers.RotatingFileHandler(maxBytes=1_000_000,
// backupCount=10) from pm_main.py/regfgc3_programmer.py.
//
// Every long-lived component is handed a *logrus.Entry by its constructor
// rather than reaching for a package-global logger, so call sites attach
// fields (converter, area, slot, device) the way the Python attached
// job_name to every log line.
package pmlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogFileName = "program_manager.log"
	defaultMaxSizeMB   = 1
	defaultMaxBackups  = 10
)

// Options configures New.
type Options struct {
	// FilePath is the rotated log file's path. Defaults to
	// "program_manager.log" in the working directory, unchanged from
	// LOG_FILE_NAME in the original.
	FilePath string
	// Verbose raises the stderr handler to Debug, mirroring
	// _configure_logger's verbosity flag (the file handler always stays at
	// Info, as the original hard-codes).
	Verbose bool
}

// New builds the root *logrus.Logger for the daemon and CLI tools: a
// dual-handler setup (stderr + rotating file), matching
// _configure_logger's two logging.Handler instances on one logger.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard) // handlers below own all actual writing

	stderrLevel := logrus.InfoLevel
	if opts.Verbose {
		stderrLevel = logrus.DebugLevel
	}
	logger.SetLevel(logrus.DebugLevel) // hooks below do their own filtering

	formatter := &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	logger.Formatter = formatter

	path := opts.FilePath
	if path == "" {
		path = defaultLogFileName
	}
	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		Compress:   false,
	}

	logger.AddHook(&levelWriterHook{writer: os.Stderr, formatter: formatter, minLevel: stderrLevel})
	logger.AddHook(&levelWriterHook{writer: fileWriter, formatter: formatter, minLevel: logrus.InfoLevel})

	return logger
}

// levelWriterHook writes formatted entries at or above minLevel to writer.
// logrus's own AddHook mechanism stands in for Python's
// logger.addHandler(fh)/addHandler(ch): two independently-leveled sinks on
// one logger.
type levelWriterHook struct {
	writer    io.Writer
	formatter logrus.Formatter
	minLevel  logrus.Level
}

func (h *levelWriterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelWriterHook) Fire(entry *logrus.Entry) error {
	if entry.Level > h.minLevel {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}
