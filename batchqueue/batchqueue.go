package batchqueue

import (
	"sync"

	"github.com/google/uuid"
)

// BatchID identifies a single enqueued batch so its receipt can be looked up after the tick
// that ingested it has completed.
type BatchID string

// Batch is a pending sample batch waiting to be ingested on the next tick. Data is laid out
// channel-major: Data[c][i] is the i-th sample of channel c, stamped Timestamps[i].
type Batch struct {
	BatchID    BatchID
	Data       [][]float64
	Timestamps []float64
	// Expand requests capacity growth instead of eviction if the batch outgrows the store
	// while it is still filling.
	Expand bool
}

// Queue accumulates sample batches between ticks. Producers push from any goroutine; the tick
// loop drains the queue with CopyBatches at the start of each tick.
type Queue struct {
	batches        []Batch
	samplesInQueue int
	mux            *sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		batches: make([]Batch, 0),
		mux:     &sync.Mutex{},
	}
}

func (q *Queue) AmountOfSamples() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return q.samplesInQueue
}

func (q *Queue) AmountOfBatches() int {
	q.mux.Lock()
	defer q.mux.Unlock()
	return len(q.batches)
}

// AddBatch enqueues a batch for the next tick and returns the ID its receipt will be filed
// under. The queue takes no copy; callers must not mutate the slices after pushing.
func (q *Queue) AddBatch(data [][]float64, timestamps []float64) BatchID {
	return q.addBatch(data, timestamps, false)
}

// AddExpandBatch enqueues a batch that is allowed to grow the store while it is filling.
func (q *Queue) AddExpandBatch(data [][]float64, timestamps []float64) BatchID {
	return q.addBatch(data, timestamps, true)
}

func (q *Queue) addBatch(data [][]float64, timestamps []float64, expand bool) BatchID {
	q.mux.Lock()
	defer q.mux.Unlock()
	id := BatchID(uuid.NewString())
	q.batches = append(q.batches, Batch{
		BatchID:    id,
		Data:       data,
		Timestamps: timestamps,
		Expand:     expand,
	})
	q.samplesInQueue += len(timestamps)
	return id
}

// Batches returns the pending batches in arrival order.
// NOTE: this is called ONLY on the copied queue inside the tick, so no mutex is needed.
func (q *Queue) Batches() []Batch {
	return q.batches
}

// CopyBatches returns a copy of the Queue, and resets the state to 0 values.
func (q *Queue) CopyBatches() *Queue {
	q.mux.Lock()
	defer q.mux.Unlock()
	cpy := *q
	q.reset()
	return &cpy
}

func (q *Queue) reset() {
	q.batches = make([]Batch, 0)
	q.samplesInQueue = 0
}
