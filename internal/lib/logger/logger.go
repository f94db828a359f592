package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/jlynch25/kaizen_api/internal/config"
)

// New builds the process logger for env. Unknown environments get production settings.
func New(env string) *logrus.Logger {
	return NewWithOutput(env, os.Stdout)
}

func NewWithOutput(env string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	switch env {
	case config.EnvLocal:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		log.SetLevel(logrus.DebugLevel)
	case config.EnvDev:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
