package common

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextLogger is an immutable, chainable field carrier over logrus. Each
// With* call returns a new instance; callers build up context as they
// descend through a call, the way stage handlers attach document_id and
// job_id before logging.
type ContextLogger struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewContextLogger creates a logger with a base set of fields. A nil logger
// falls back to the package-wide Logger.
func NewContextLogger(logger *logrus.Logger, fields map[string]interface{}) *ContextLogger {
	if logger == nil {
		logger = Logger
	}
	base := make(logrus.Fields, len(fields))
	for k, v := range fields {
		base[k] = v
	}
	return &ContextLogger{logger: logger, fields: base}
}

func (cl *ContextLogger) clone() logrus.Fields {
	f := make(logrus.Fields, len(cl.fields))
	for k, v := range cl.fields {
		f[k] = v
	}
	return f
}

// WithField returns a derived logger carrying one additional field.
func (cl *ContextLogger) WithField(key string, value interface{}) *ContextLogger {
	f := cl.clone()
	f[key] = value
	return &ContextLogger{logger: cl.logger, fields: f}
}

// WithFields returns a derived logger carrying additional fields.
func (cl *ContextLogger) WithFields(fields map[string]interface{}) *ContextLogger {
	f := cl.clone()
	for k, v := range fields {
		f[k] = v
	}
	return &ContextLogger{logger: cl.logger, fields: f}
}

// WithError attaches an error's message under the "error" field.
func (cl *ContextLogger) WithError(err error) *ContextLogger {
	if err == nil {
		return cl
	}
	return cl.WithField("error", err.Error())
}

// WithContext pulls request_id/job_id/document_id out of ctx if a caller
// stashed them there via context.WithValue.
func (cl *ContextLogger) WithContext(ctx context.Context) *ContextLogger {
	f := cl.clone()
	for _, key := range []string{"request_id", "job_id", "document_id", "deal_id"} {
		if v := ctx.Value(key); v != nil {
			f[key] = v
		}
	}
	return &ContextLogger{logger: cl.logger, fields: f}
}

func (cl *ContextLogger) Debug(msg string) { cl.logger.WithFields(cl.fields).Debug(msg) }
func (cl *ContextLogger) Info(msg string)  { cl.logger.WithFields(cl.fields).Info(msg) }
func (cl *ContextLogger) Warn(msg string)  { cl.logger.WithFields(cl.fields).Warn(msg) }
func (cl *ContextLogger) Error(msg string) { cl.logger.WithFields(cl.fields).Error(msg) }

func (cl *ContextLogger) Debugf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Debugf(format, args...)
}
func (cl *ContextLogger) Infof(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Infof(format, args...)
}
func (cl *ContextLogger) Warnf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Warnf(format, args...)
}
func (cl *ContextLogger) Errorf(format string, args ...interface{}) {
	cl.logger.WithFields(cl.fields).Errorf(format, args...)
}

// ComponentLogger creates a logger pre-tagged with a component name, the
// convention used for every package-level logger in this repo
// (coordinator, worker, graph, ...).
func ComponentLogger(component string) *ContextLogger {
	return NewContextLogger(Logger, map[string]interface{}{"component": component})
}

// LogDuration logs the wall time of an operation when the returned func is
// called, typically via defer.
func LogDuration(logger *ContextLogger, operation string) func() {
	start := time.Now()
	return func() {
		logger.WithFields(map[string]interface{}{
			"operation":   operation,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("operation completed")
	}
}
