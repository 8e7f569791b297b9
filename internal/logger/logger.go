package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging surface handed to every component.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error)
	WithFields(fields map[string]any) Logger
}

// LogrusLogger implements Logger using logrus.
type LogrusLogger struct {
	entry *logrus.Entry
}

// New creates a JSON logger writing to stdout and, when filepath is set,
// appending to that file as well.
func New(level, filepath string) (Logger, error) {
	var out io.Writer = os.Stdout
	if filepath != "" {
		file, err := os.OpenFile(filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(os.Stdout, file)
	}

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	return newWithWriter(out, lvl), nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() Logger {
	return newWithWriter(io.Discard, logrus.PanicLevel)
}

func newWithWriter(w io.Writer, lvl logrus.Level) Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	base.SetLevel(lvl)
	return &LogrusLogger{entry: logrus.NewEntry(base)}
}

func (l *LogrusLogger) Debug(msg string) { l.entry.Debug(msg) }

func (l *LogrusLogger) Info(msg string) { l.entry.Info(msg) }

func (l *LogrusLogger) Warn(msg string) { l.entry.Warn(msg) }

func (l *LogrusLogger) Error(err error) { l.entry.Error(err) }

func (l *LogrusLogger) WithFields(fields map[string]any) Logger {
	return &LogrusLogger{
		entry: l.entry.WithFields(logrus.Fields(fields)),
	}
}
