package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.WarnLevel)
)

func newLogger(out *os.File, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(level)
	return l
}

// InitLogger reconfigures both loggers. level is a logrus level name; an unknown
// value keeps info. jsonFormat switches to the JSON formatter for log shipping.
func InitLogger(level string, jsonFormat bool) {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}

	var formatter logrus.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if jsonFormat {
		formatter = &logrus.JSONFormatter{}
	}

	InfoLogger.SetFormatter(formatter)
	InfoLogger.SetLevel(lvl)

	// Warnings (tampered webhooks, gateway hiccups) always reach stderr.
	ErrorLogger.SetFormatter(formatter)
	if lvl < logrus.WarnLevel {
		ErrorLogger.SetLevel(lvl)
	} else {
		ErrorLogger.SetLevel(logrus.WarnLevel)
	}
}
