package metrics

import (
	"time"

	obserrors "github.com/meridianbank/opsdesk/internal/observability/errors"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"

	CacheHit  = "hit"
	CacheMiss = "miss"
)

// SnapshotMetric captures one dataset snapshot load for metric emission.
type SnapshotMetric struct {
	Dataset  string
	Source   string
	Cache    string // hit, miss, or empty when the source is never cached
	Duration time.Duration
	Err      error
}

// EmitSnapshotLoad emits standardised snapshot load metrics.
func EmitSnapshotLoad(sink statsd.Sink, in SnapshotMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}

	tags := map[string]string{
		"dataset": in.Dataset,
		"source":  in.Source,
		"result":  result,
	}
	if in.Cache != "" {
		tags["cache"] = in.Cache
	}
	if in.Err != nil {
		if class := obserrors.CodeOrClass(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("snapshot.load", 1, tags)

	if in.Duration > 0 {
		sink.Timing("snapshot.load_duration", in.Duration, CloneTags(tags))
	}
}

// ExportMetric captures one dataset export for metric emission.
type ExportMetric struct {
	Dataset  string
	Format   string
	Rows     int
	Duration time.Duration
	Err      error
}

// EmitExport emits standardised export metrics.
func EmitExport(sink statsd.Sink, in ExportMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	if in.Err != nil {
		result = ResultError
	}

	tags := map[string]string{
		"dataset": in.Dataset,
		"format":  in.Format,
		"result":  result,
	}
	if in.Err != nil {
		if class := obserrors.CodeOrClass(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("export.completed", 1, tags)

	if in.Err == nil {
		sink.Count("export.rows", int64(in.Rows), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("export.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
