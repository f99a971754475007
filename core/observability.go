package core

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	levelDebug = "debug"
	levelInfo  = "info"
	levelError = "error"
)

// observeOperation reports one entry point call: a contracts.<op>.total
// counter, a contracts.<op>.duration_ms histogram and one log line. Ignored
// outcomes are logged at debug level.
func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	outcome EventOutcome,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	elapsed := time.Since(startedAt)

	status := "success"
	if err != nil {
		status = "failure"
	}
	tags := map[string]string{"operation": operation, "status": status}
	if kind, ok := fields["event_kind"].(string); ok && strings.TrimSpace(kind) != "" {
		tags["event_kind"] = kind
	}
	if outcome.Status != "" {
		tags["outcome"] = string(outcome.Status)
	}
	s.recordCounter(ctx, "contracts."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "contracts."+operation+".duration_ms", float64(elapsed.Milliseconds()), tags)

	logFields := cloneFields(fields)
	logFields["event_type"] = operation
	logFields["status"] = status
	logFields["duration_ms"] = elapsed.Milliseconds()
	if outcome.Status != "" {
		logFields["outcome"] = string(outcome.Status)
	}
	if outcome.Reason != "" {
		logFields["reason"] = outcome.Reason
	}

	switch {
	case err != nil:
		logFields["error"] = err.Error()
		s.log(ctx, levelError, operation+" failed", logFields)
	case outcome.Status == OutcomeIgnored:
		s.log(ctx, levelDebug, operation+" ignored", logFields)
	default:
		s.log(ctx, levelInfo, operation+" succeeded", logFields)
	}
}

func (s *Service) log(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch level {
	case levelError:
		logger.Error(message, args...)
	case levelDebug:
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// defaultLogger is the named glog logger used when a component was built
// without one.
func defaultLogger(name string) Logger {
	provider, logger := glog.Resolve(name, nil, nil)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return glog.Ensure(named)
		}
	}
	return glog.Ensure(logger)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return maps.Clone(fields)
}

// flattenFields turns fields into key/value args ordered by key.
func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(operation)))
}
