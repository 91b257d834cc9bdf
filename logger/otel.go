package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/log"
)

// otelLogger emits records to an OpenTelemetry log.Logger
type otelLogger struct {
	prefixes   []string
	metadata   map[string]log.Value
	logLevel   LogLevel
	otelLogger log.Logger
}

var _ Logger = (*otelLogger)(nil)

func (o *otelLogger) clone() *otelLogger {
	c := *o
	c.prefixes = append([]string(nil), o.prefixes...)
	return &c
}

func (o *otelLogger) WithPrefix(prefix string) Logger {
	c := o.clone()
	c.prefixes = append(c.prefixes, prefix)
	return c
}

func toLogValue(unknown interface{}) log.Value {
	switch v := unknown.(type) {
	case string:
		return log.StringValue(v)
	case int:
		return log.IntValue(v)
	case int64:
		return log.Int64Value(v)
	case bool:
		return log.BoolValue(v)
	case float64:
		return log.Float64Value(v)
	case []byte:
		return log.BytesValue(v)
	case []interface{}:
		values := make([]log.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return log.SliceValue(values...)
	case map[string]interface{}:
		values := make([]log.KeyValue, 0, len(v))
		for k, item := range v {
			values = append(values, log.KeyValue{Key: k, Value: toLogValue(item)})
		}
		return log.MapValue(values...)
	default:
		return log.StringValue(fmt.Sprintf("%v", v))
	}
}

func (o *otelLogger) With(metadata map[string]interface{}) Logger {
	kv := make(map[string]log.Value, len(o.metadata)+len(metadata))
	for k, v := range o.metadata {
		kv[k] = v
	}
	for k, v := range metadata {
		kv[k] = toLogValue(v)
	}
	c := o.clone()
	c.metadata = kv
	return c
}

func (o *otelLogger) IsLevelEnabled(level LogLevel) bool {
	return level >= o.logLevel
}

func (o *otelLogger) log(level LogLevel, severity log.Severity, msg string, args ...interface{}) {
	if level < o.logLevel {
		return
	}
	formatted := fmt.Sprintf(msg, args...)
	if len(o.prefixes) > 0 {
		formatted = strings.Join(o.prefixes, " ") + " " + formatted
	}
	now := time.Now()
	var record log.Record
	record.SetBody(log.StringValue(formatted))
	record.SetSeverity(severity)
	record.SetSeverityText(severity.String())
	record.SetObservedTimestamp(now)
	record.SetTimestamp(now)
	for k, v := range o.metadata {
		record.AddAttributes(log.KeyValue{Key: k, Value: v})
	}
	o.otelLogger.Emit(context.Background(), record)
}

func (o *otelLogger) Trace(msg string, args ...interface{}) {
	o.log(LevelTrace, log.SeverityTrace, msg, args...)
}

func (o *otelLogger) Debug(msg string, args ...interface{}) {
	o.log(LevelDebug, log.SeverityDebug, msg, args...)
}

func (o *otelLogger) Info(msg string, args ...interface{}) {
	o.log(LevelInfo, log.SeverityInfo, msg, args...)
}

func (o *otelLogger) Warn(msg string, args ...interface{}) {
	o.log(LevelWarn, log.SeverityWarn, msg, args...)
}

func (o *otelLogger) Error(msg string, args ...interface{}) {
	o.log(LevelError, log.SeverityError, msg, args...)
}

func (o *otelLogger) Fatal(msg string, args ...interface{}) {
	o.log(LevelError, log.SeverityFatal, msg, args...)
	os.Exit(1)
}

// NewOtelLogger returns a Logger emitting records at level and above to l.
func NewOtelLogger(l log.Logger, level LogLevel) Logger {
	return &otelLogger{otelLogger: l, logLevel: level}
}
