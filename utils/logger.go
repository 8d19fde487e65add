package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	isVerbose bool
	isDebug   bool

	logger = newLogger(os.Stderr)
)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000000",
	})
	return l
}

func SetVerbose(verbose bool) {
	isVerbose = verbose
	syncLevel()
}

func IsVerbose() bool {
	return isVerbose
}

// SetDebug enables debug mode: verbose logging plus extra diagnostics
// from the child processes we spawn.
func SetDebug(debug bool) {
	isDebug = debug
	syncLevel()
}

func IsDebug() bool {
	return isDebug
}

// SetOutput redirects log output, the terminal UI uses this to keep
// the screen clean.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Logger exposes the underlying logrus instance for structured fields.
func Logger() *logrus.Logger {
	return logger
}

func syncLevel() {
	if isVerbose || isDebug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

func Verbose(format string, args ...interface{}) {
	if isVerbose || isDebug {
		logger.Debugf(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}
