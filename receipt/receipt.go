// Package receipt keeps track of ingestion receipts for a number of ticks. A receipt consists of
// any errors that were encountered while applying a batch to the sample store, as well as what
// the ingestion did to the store (samples written, wraps, capacity growth).
package receipt

import (
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"pkg.signalworks.dev/signal-engine/pulse/batchqueue"
)

var (
	ErrTickHasNotBeenProcessed = errors.New("tick is still in progress")
	ErrOldTickHasBeenDiscarded = errors.New("the requested tick has been discarded due to age")
)

// History keeps track of batch receipts for some number of ticks.
type History struct {
	currTick     *atomic.Uint64
	ticksToStore uint64
	// Receipts for a given tick are assigned to an index into this history slice which acts
	// as a ring buffer.
	history []map[batchqueue.BatchID]Receipt
}

// Receipt records what happened to a single batch: how many samples landed in the store,
// whether the write lapped the wrap boundary or grew the capacity, and any errors.
type Receipt struct {
	BatchID  batchqueue.BatchID `json:"batchId"`
	Samples  int                `json:"samples"`
	Wrapped  bool               `json:"wrapped"`
	Expanded bool               `json:"expanded"`
	Errs     []error            `json:"errs"`
}

// NewHistory creates an object that can track batch receipts over a number of ticks.
func NewHistory(currentTick uint64, ticksToStore int) *History {
	// Add an extra tick for the "current" tick.
	ticksToStore++
	h := &History{
		currTick:     &atomic.Uint64{},
		ticksToStore: uint64(ticksToStore),
	}
	h.history = make([]map[batchqueue.BatchID]Receipt, 0, ticksToStore)
	for i := 0; i < ticksToStore; i++ {
		h.history = append(h.history, map[batchqueue.BatchID]Receipt{})
	}
	h.currTick.Store(currentTick)
	return h
}

func (h *History) Size() uint64 {
	return h.ticksToStore
}

// NextTick advances the internal History tick by 1. Results and errors can only be set on the
// current tick. Receipts from ticks in the past are read only.
func (h *History) NextTick() {
	newCurr := h.currTick.Add(1)
	mod := newCurr % h.ticksToStore
	h.history[mod] = map[batchqueue.BatchID]Receipt{}
}

func (h *History) SetTick(tick uint64) {
	h.currTick.Store(tick)
}

// AddError associates the given error with the given batch ID. Calling this multiple times will
// append the error to any previously added errors.
func (h *History) AddError(id batchqueue.BatchID, err error) {
	tick := int(h.currTick.Load() % h.ticksToStore)
	rec := h.history[tick][id]
	rec.BatchID = id
	rec.Errs = append(rec.Errs, err)
	h.history[tick][id] = rec
}

// SetResult records the outcome of a batch's ingestion. Calling this multiple times will replace
// any previous result.
func (h *History) SetResult(id batchqueue.BatchID, samples int, wrapped, expanded bool) {
	tick := int(h.currTick.Load() % h.ticksToStore)
	rec := h.history[tick][id]
	rec.BatchID = id
	rec.Samples = samples
	rec.Wrapped = wrapped
	rec.Expanded = expanded
	h.history[tick][id] = rec
}

// GetReceipt gets the receipt (the ingestion result and the list of errors) for the given batch
// ID in the current tick. To get receipts from previous ticks use GetReceiptsForTick.
func (h *History) GetReceipt(id batchqueue.BatchID) (Receipt, bool) {
	tick := int(h.currTick.Load() % h.ticksToStore)
	rec, ok := h.history[tick][id]
	return rec, ok
}

// GetReceiptsForTick gets all receipts for the given tick. If the tick is still active, or if
// the tick is too far in the past, an error is returned.
func (h *History) GetReceiptsForTick(tick uint64) ([]Receipt, error) {
	currTick := h.currTick.Load()
	// The requested tick is either in the future, or it is currently being processed. We don't
	// yet know what the results of this tick will be.
	if currTick <= tick {
		return nil, eris.Wrap(ErrTickHasNotBeenProcessed, "")
	}
	if currTick-tick >= h.ticksToStore {
		return nil, eris.Wrap(ErrOldTickHasBeenDiscarded, "")
	}
	mod := tick % h.ticksToStore
	recs := make([]Receipt, 0, len(h.history[mod]))
	for _, rec := range h.history[mod] {
		recs = append(recs, rec)
	}

	return recs, nil
}
