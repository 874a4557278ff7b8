package output

import "browser-pilot/internal/domain/entity"

// MetricsPort is the process-wide usage aggregator. Updates are additive
// and safe under concurrency; Reset is the only way counters go down.
type MetricsPort interface {
	Record(op entity.Operation, usage entity.Usage)
	Snapshot() entity.MetricsSnapshot
	Reset()
}
