package core

import (
	"context"
	"fmt"
	"strings"
)

// MetricPrefix namespaces every metric the service emits.
const MetricPrefix = "integrations"

// Tags attached to operation metrics. Submission values never become tags.
var metricTagKeys = []string{"integration", "provider_id", "error_kind"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// OperationCounterName is incremented once per service operation, e.g.
// "integrations.send_payload.total".
func OperationCounterName(operation string) string {
	return MetricPrefix + "." + normalizeOperation(operation) + ".total"
}

func OperationDurationName(operation string) string {
	return MetricPrefix + "." + normalizeOperation(operation) + ".duration_ms"
}

func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": normalizeOperation(operation),
		"status":    strings.TrimSpace(status),
	}
	for _, key := range metricTagKeys {
		value, ok := fields[key]
		if !ok || value == nil {
			continue
		}
		if text := strings.TrimSpace(fmt.Sprint(value)); text != "" {
			tags[key] = text
		}
	}
	return tags
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

func cloneTags(tags map[string]string) map[string]string {
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
