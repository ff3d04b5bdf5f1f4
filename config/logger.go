package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
)

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetLevel(logrus.InfoLevel)
	logg.SetOutput(os.Stdout)
}

// ConfigureLogger applies the level and format from cfg to the process logger.
func ConfigureLogger(cfg Config) *logrus.Logger {
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logg.SetLevel(lvl)
	} else {
		logg.Warnf("config: unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, logg.GetLevel())
	}
	if strings.EqualFold(cfg.LogFormat, "text") {
		logg.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logg.SetFormatter(&logrus.JSONFormatter{})
	}
	return logg
}

// LogError logs err with the module/function context used across the app.
func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
