package logger

import (
	"sync"
	"time"
)

// Record is one structured log line on its way to the sink.
type Record struct {
	Time    time.Time      `json:"timestamp"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Forwarder ships records to a sink on a coalesced worker: any number of
// producers enqueue, but at most one drain cycle runs at a time. A record
// arriving mid-drain waits for the next cycle instead of spawning a
// concurrent drain.
type Forwarder struct {
	mu       sync.Mutex
	pending  []Record
	draining bool
	closed   bool
	wg       sync.WaitGroup
	sink     func([]Record)
}

func NewForwarder(sink func([]Record)) *Forwarder {
	return &Forwarder{sink: sink}
}

func (f *Forwarder) Enqueue(r Record) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.pending = append(f.pending, r)
	if f.draining {
		f.mu.Unlock()
		return
	}
	f.draining = true
	f.wg.Add(1)
	f.mu.Unlock()

	go f.drain()
}

func (f *Forwarder) drain() {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		if len(f.pending) == 0 {
			f.draining = false
			f.mu.Unlock()
			return
		}
		batch := f.pending
		f.pending = nil
		f.mu.Unlock()

		f.sink(batch)
	}
}

// Close waits for the in-flight drain to finish; records enqueued after
// Close are dropped.
func (f *Forwarder) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}
