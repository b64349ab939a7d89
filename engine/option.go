package engine

import (
	"github.com/rs/zerolog"

	"pkg.signalworks.dev/signal-engine/pulse/events"
	"pkg.signalworks.dev/signal-engine/pulse/receipt"
)

type Option func(e *Engine)

// WithEventHub replaces the hub the engine broadcasts tick events on. Mostly useful in tests
// that want to observe the queue without a websocket server.
func WithEventHub(hub *events.EventHub) Option {
	return func(e *Engine) {
		e.eventHub = hub
	}
}

// WithRolloverStore enables snapshot persistence on every wrap of the sample store.
func WithRolloverStore(store RolloverStore) Option {
	return func(e *Engine) {
		e.rollovers = store
	}
}

// WithReceiptHistorySize sets how many completed ticks of batch receipts stay queryable.
func WithReceiptHistorySize(size int) Option {
	return func(e *Engine) {
		e.receiptHistory = receipt.NewHistory(e.CurrentTick(), size)
	}
}

// WithStartTick starts the tick counter somewhere other than zero, e.g. when resuming a stream
// from a persisted rollover.
func WithStartTick(tick uint64) Option {
	return func(e *Engine) {
		e.tick.Store(tick)
	}
}

func WithLogger(logger *zerolog.Logger) Option {
	return func(e *Engine) {
		e.Logger = logger
	}
}
