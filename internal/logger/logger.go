// Package logger holds the shared structured-logging setup: one logrus
// entry per process, with helpers for the field conventions the pipeline
// stages and the HTTP surface log under.
package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Entry
}

// New builds the process-wide logger. Local runs get a colored console
// format, anything else emits JSON for log collection. LOG_LEVEL selects
// the level and defaults to info.
func New() *Logger {
	base := logrus.New()
	base.SetOutput(os.Stdout)

	if env := os.Getenv("ENVIRONMENT"); env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
			ForceColors:     true,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		base.SetLevel(level)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}

	return &Logger{Entry: logrus.NewEntry(base)}
}

// WithComponent tags every line of a pipeline stage.
func (l *Logger) WithComponent(name string) *logrus.Entry {
	return l.WithField("component", name)
}

// WithBatch tags entries with the analysis batch ID.
func (l *Logger) WithBatch(batchID string) *logrus.Entry {
	return l.WithField("batch_id", batchID)
}

// WithRequest tags an entry with the request metadata the HTTP surface
// logs on every call. A missing X-Request-ID gets a generated one.
func (l *Logger) WithRequest(r *http.Request) *logrus.Entry {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.New().String()
	}

	return l.WithFields(logrus.Fields{
		"req_id":     reqID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote_ip":  r.RemoteAddr,
		"user_agent": r.UserAgent(),
	})
}

// WithError attaches the error message under a plain "error" field; nil
// is a no-op.
func (l *Logger) WithError(err error) *logrus.Entry {
	if err == nil {
		return l.Entry
	}
	return l.Entry.WithField("error", err.Error())
}
