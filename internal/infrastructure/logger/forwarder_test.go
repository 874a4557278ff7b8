package logger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestForwarder_DeliversEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var got []Record

	f := NewForwarder(func(batch []Record) {
		mu.Lock()
		got = append(got, batch...)
		mu.Unlock()
	})

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				f.Enqueue(Record{Time: time.Now(), Level: "INFO", Message: "m"})
			}
		}()
	}
	wg.Wait()
	f.Close()

	assert.Len(t, got, producers*perProducer)
}

func TestForwarder_SingleDrainCycleAtATime(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	active := 0
	maxActive := 0
	var batches int

	f := NewForwarder(func(batch []Record) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		batches++
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
	})

	for i := 0; i < 40; i++ {
		f.Enqueue(Record{Message: "m"})
		time.Sleep(time.Millisecond)
	}
	f.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxActive, "two drain cycles must never overlap")
	// Records arriving mid-drain are coalesced into later batches.
	assert.Less(t, batches, 40)
	require.Greater(t, batches, 0)
}

func TestForwarder_EnqueueAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var n int
	f := NewForwarder(func(batch []Record) {
		mu.Lock()
		n += len(batch)
		mu.Unlock()
	})

	f.Enqueue(Record{Message: "kept"})
	f.Close()
	f.Enqueue(Record{Message: "dropped"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, n)
}
