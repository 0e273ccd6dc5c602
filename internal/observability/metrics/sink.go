// Package metrics defines the metric sink used across the notifier and its Prometheus backing.
package metrics

import (
	"maps"
	"time"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Sink describes the minimal interface required to emit metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// NopSink discards everything.
type NopSink struct{}

var _ Sink = NopSink{}

// Count implements Sink.
func (NopSink) Count(string, int64, map[string]string) {}

// Gauge implements Sink.
func (NopSink) Gauge(string, float64, map[string]string) {}

// Timing implements Sink.
func (NopSink) Timing(string, time.Duration, map[string]string) {}

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	maps.Copy(out, src)
	return out
}
