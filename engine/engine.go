package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pkg.signalworks.dev/signal-engine/pulse/batchqueue"
	"pkg.signalworks.dev/signal-engine/pulse/events"
	"pkg.signalworks.dev/signal-engine/pulse/receipt"
	"pkg.signalworks.dev/signal-engine/pulse/ring"
)

const defaultReceiptHistorySize = 10

// RolloverStore persists the snapshot captured when the sample store wraps. The engine treats
// persistence as optional; without a store, wraps simply evict.
type RolloverStore interface {
	SaveRollover(ctx context.Context, tick uint64, snap *ring.Snapshot) error
}

// readRequest carries a buffer read into the tick loop so queries never observe a store that is
// halfway through an append.
type readRequest struct {
	read func(buf *ring.Buffer)
	done chan struct{}
}

// Engine owns a single stream: its sample store, the queue of batches waiting to be ingested,
// and the receipt and event plumbing around each tick. All writes to the store happen on the
// tick goroutine; queries are funneled through the same goroutine while it runs.
type Engine struct {
	namespace string

	buf            *ring.Buffer
	queue          *batchqueue.Queue
	receiptHistory *receipt.History
	eventHub       *events.EventHub
	rollovers      RolloverStore

	tick      *atomic.Uint64
	timestamp *atomic.Uint64

	Logger *zerolog.Logger

	endLoopCh     chan bool
	isLoopRunning atomic.Bool
	readCh        chan readRequest

	// addChannelWaitingForNextTick accepts a channel which will be closed after a tick has
	// been completed.
	addChannelWaitingForNextTick chan chan struct{}

	shutdownMutex sync.Mutex
}

func New(namespace string, buf *ring.Buffer, opts ...Option) (*Engine, error) {
	if buf == nil {
		return nil, eris.New("engine requires a sample store")
	}
	logger := log.With().Str("stream", namespace).Logger()
	e := &Engine{
		namespace: namespace,
		buf:       buf,
		queue:     batchqueue.NewQueue(),
		tick:      &atomic.Uint64{},
		timestamp: &atomic.Uint64{},
		Logger:    &logger,

		endLoopCh: make(chan bool),
		readCh:    make(chan readRequest),

		addChannelWaitingForNextTick: make(chan chan struct{}),
	}
	e.isLoopRunning.Store(false)
	for _, opt := range opts {
		opt(e)
	}
	if e.receiptHistory == nil {
		e.receiptHistory = receipt.NewHistory(e.CurrentTick(), defaultReceiptHistorySize)
	}
	if e.eventHub == nil {
		e.eventHub = events.NewEventHub()
	}
	e.receiptHistory.SetTick(e.CurrentTick())
	return e, nil
}

func (e *Engine) Namespace() string { return e.namespace }

func (e *Engine) CurrentTick() uint64 { return e.tick.Load() }

func (e *Engine) Timestamp() uint64 { return e.timestamp.Load() }

func (e *Engine) GetEventHub() *events.EventHub { return e.eventHub }

func (e *Engine) GetBatchQueueAmount() int {
	return e.queue.AmountOfBatches()
}

// AddBatch enqueues a sample batch for the next tick. It returns the tick the batch will be
// ingested on and the ID its receipt will be filed under.
func (e *Engine) AddBatch(data [][]float64, timestamps []float64) (uint64, batchqueue.BatchID) {
	return e.CurrentTick(), e.queue.AddBatch(data, timestamps)
}

// AddExpandBatch enqueues a batch that may grow the store while it is still filling.
func (e *Engine) AddExpandBatch(data [][]float64, timestamps []float64) (uint64, batchqueue.BatchID) {
	return e.CurrentTick(), e.queue.AddExpandBatch(data, timestamps)
}

func (e *Engine) GetReceiptsForTick(tick uint64) ([]receipt.Receipt, error) {
	return e.receiptHistory.GetReceiptsForTick(tick)
}

func (e *Engine) ReceiptHistorySize() uint64 {
	return e.receiptHistory.Size()
}

// StartTickLoop starts the tick loop on its own goroutine. Each value received on tickStart
// triggers one tick; the completed tick number is reported on tickDone when it is non-nil.
func (e *Engine) StartTickLoop(
	ctx context.Context,
	tickStart <-chan time.Time,
	tickDone chan<- uint64,
) {
	e.Logger.Info().Msg("Tick loop started")

	go func() {
		ok := e.isLoopRunning.CompareAndSwap(false, true)
		if !ok {
			// The loop has already started
			return
		}
		var waitingChs []chan struct{}
	loop:
		for {
			select {
			case <-tickStart:
				e.tickTheEngine(ctx, tickDone)
				closeAllChannels(waitingChs)
				waitingChs = waitingChs[:0]
			case req := <-e.readCh:
				req.read(e.buf)
				close(req.done)
			case <-e.endLoopCh:
				e.drainChannelsWaitingForNextTick()
				e.drainEndLoopChannels()
				e.drainReadRequests()
				closeAllChannels(waitingChs)
				if e.GetBatchQueueAmount() > 0 {
					// immediately tick if the queue is not empty so no pending batch is lost.
					e.tickTheEngine(ctx, tickDone)
					if tickDone != nil {
						close(tickDone)
					}
				}
				break loop
			case ch := <-e.addChannelWaitingForNextTick:
				waitingChs = append(waitingChs, ch)
			}
		}
		e.isLoopRunning.Store(false)
	}()
}

func closeAllChannels(chs []chan struct{}) {
	for _, ch := range chs {
		close(ch)
	}
}

func (e *Engine) tickTheEngine(ctx context.Context, tickDone chan<- uint64) {
	currTick := e.CurrentTick()
	// this is the final point where errors bubble up and hit a panic. There are other places
	// where this occurs but this is the highest terminal point.
	// the panic may point you to here, (or the tick function) but the real stack trace is in
	// the error message.
	if err := e.Tick(ctx); err != nil {
		bytes, err := json.Marshal(eris.ToJSON(err, true))
		if err != nil {
			panic(err)
		}
		e.Logger.Panic().Err(err).Str("tickError", "Error running Tick in tick loop.").RawJSON("error", bytes)
	}
	if tickDone != nil {
		tickDone <- currTick
	}
}

// drainChannelsWaitingForNextTick continually closes any channels that are added to the
// addChannelWaitingForNextTick channel. This is used when the engine is shut down; it ensures
// any calls to WaitForNextTick that happen after a shutdown will not block.
func (e *Engine) drainChannelsWaitingForNextTick() {
	go func() {
		for ch := range e.addChannelWaitingForNextTick {
			close(ch)
		}
	}()
}

func (e *Engine) drainEndLoopChannels() {
	go func() {
		for range e.endLoopCh { //nolint:revive // This pattern drains the channel until closed
		}
	}()
}

// drainReadRequests keeps serving queries that raced with a shutdown; once the loop has exited
// the store is no longer written to, so direct reads are safe.
func (e *Engine) drainReadRequests() {
	go func() {
		for req := range e.readCh {
			req.read(e.buf)
			close(req.done)
		}
	}()
}

// WaitForNextTick blocks until at least one tick has completed. It returns true if it
// successfully waited for a tick. False may be returned if the engine was shut down while
// waiting for the next tick to complete.
func (e *Engine) WaitForNextTick() (success bool) {
	startTick := e.CurrentTick()
	ch := make(chan struct{})
	e.addChannelWaitingForNextTick <- ch
	<-ch
	return e.CurrentTick() > startTick
}

func (e *Engine) IsTickLoopRunning() bool {
	return e.isLoopRunning.Load()
}

func (e *Engine) Shutdown() error {
	e.shutdownMutex.Lock() // This queues up Shutdown calls so they happen one after the other.
	defer e.shutdownMutex.Unlock()
	if !e.IsTickLoopRunning() {
		return nil
	}
	log.Info().Msg("Shutting down tick loop.")
	e.endLoopCh <- true
	for e.IsTickLoopRunning() { // Block until loop stops.
		time.Sleep(100 * time.Millisecond) //nolint:gomnd // its ok.
	}
	log.Info().Msg("Successfully shut down tick loop.")
	if e.eventHub != nil {
		e.eventHub.Shutdown()
	}
	return nil
}
