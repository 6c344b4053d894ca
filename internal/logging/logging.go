// Package logging configures the process-wide logrus logger.
package logging

import (
	"os" // Log output

	"github.com/sirupsen/logrus" // Structured logging
)

// ServiceName is attached to every log entry
const ServiceName = "etherstake-api"

// Setup picks the formatter and level for the environment: readable text at
// debug level in development, JSON at info level elsewhere.
func Setup(env string) {
	logrus.SetOutput(os.Stdout)
	if env == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetLevel(logrus.InfoLevel)
	}
	logrus.AddHook(FieldHook{Fields: logrus.Fields{"service": ServiceName}})
}

// FieldHook adds fixed fields to entries that do not already carry them
type FieldHook struct {
	Fields logrus.Fields
}

func (h FieldHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h FieldHook) Fire(e *logrus.Entry) error {
	for k, v := range h.Fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
