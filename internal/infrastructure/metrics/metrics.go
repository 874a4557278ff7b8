// Package metrics holds the process-wide usage aggregator. Counters are
// monotonic under concurrent additive updates and reset only on explicit
// caller action.
package metrics

import (
	"sync/atomic"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

var _ output.MetricsPort = (*Aggregator)(nil)

type opCounters struct {
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	inferenceTimeMs  atomic.Int64
}

type Aggregator struct {
	// Fixed key set built at construction; the map itself is never written
	// after New, so reads need no locking.
	ops map[entity.Operation]*opCounters
}

func New() *Aggregator {
	ops := make(map[entity.Operation]*opCounters, len(entity.Operations()))
	for _, op := range entity.Operations() {
		ops[op] = &opCounters{}
	}
	return &Aggregator{ops: ops}
}

func (a *Aggregator) Record(op entity.Operation, usage entity.Usage) {
	c, ok := a.ops[op]
	if !ok {
		// Unknown partitions fold into the agent bucket rather than vanish.
		c = a.ops[entity.OpAgent]
	}
	c.promptTokens.Add(int64(usage.PromptTokens))
	c.completionTokens.Add(int64(usage.CompletionTokens))
	c.inferenceTimeMs.Add(usage.InferenceTime.Milliseconds())
}

func (a *Aggregator) Snapshot() entity.MetricsSnapshot {
	snap := make(entity.MetricsSnapshot, len(a.ops))
	for op, c := range a.ops {
		snap[op] = entity.OperationMetrics{
			PromptTokens:     c.promptTokens.Load(),
			CompletionTokens: c.completionTokens.Load(),
			InferenceTimeMs:  c.inferenceTimeMs.Load(),
		}
	}
	return snap
}

func (a *Aggregator) Reset() {
	for _, c := range a.ops {
		c.promptTokens.Store(0)
		c.completionTokens.Store(0)
		c.inferenceTimeMs.Store(0)
	}
}
