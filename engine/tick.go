package engine

import (
	"context"
	"time"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"pkg.signalworks.dev/signal-engine/pulse/batchqueue"
	"pkg.signalworks.dev/signal-engine/pulse/events"
	"pkg.signalworks.dev/signal-engine/pulse/ring"
	"pkg.signalworks.dev/signal-engine/pulse/statsd"
)

// Tick drains the batch queue into the sample store, files a receipt per batch, and flushes
// the events the ingestion produced. Malformed batches are recorded on their receipts and do
// not abort the tick; only a failure to persist a rollover snapshot is returned as an error.
func (e *Engine) Tick(ctx context.Context) error {
	// This defer is here to catch any panics that occur during the tick. It will log the
	// current tick so the crash can be correlated with the batch stream.
	defer func() {
		if panicValue := recover(); panicValue != nil {
			e.Logger.Error().Msgf("Tick: %d, panic while ingesting batches", e.CurrentTick())
			panic(panicValue)
		}
	}()

	var span tracer.Span
	span, ctx = tracer.StartSpanFromContext(ctx, "pulse.span.tick")
	defer func() {
		span.Finish()
	}()

	e.Logger.Info().Int("tick", int(e.CurrentTick())).Msg("Tick started")

	// Copy the batches from the queue so that producers can keep pushing while the tick runs.
	queue := e.queue.CopyBatches()

	startTime := time.Now()
	e.timestamp.Store(uint64(startTime.Unix()))

	ingested := 0
	for _, batch := range queue.Batches() {
		n, err := e.applyBatch(ctx, batch)
		if err != nil {
			return err
		}
		ingested += n
	}

	if e.eventHub != nil {
		// the engine can be optionally loaded with or without an eventHub. If there is one, on
		// every tick it must flush events.
		flushEventStart := time.Now()
		e.eventHub.FlushEvents()
		statsd.EmitTickStat(flushEventStart, "flush_events")
	}

	e.tick.Add(1)
	e.receiptHistory.NextTick()
	statsd.EmitTickStat(startTime, "full_tick")
	statsd.EmitIngestStat(ingested)
	statsd.EmitEffectiveRateStat(e.buf.EffectiveRate())
	return nil
}

// applyBatch writes one batch into the store and files its receipt. The returned error is
// reserved for rollover persistence failures; ingestion errors land on the receipt instead.
func (e *Engine) applyBatch(ctx context.Context, batch batchqueue.Batch) (int, error) {
	wrapsBefore := e.buf.Wraps()
	grown := false

	var err error
	switch {
	case batch.Expand:
		grown, err = e.buf.AppendExpand(batch.Data, batch.Timestamps)
	case e.rollovers != nil:
		var snap *ring.Snapshot
		snap, err = e.buf.AppendRollover(batch.Data, batch.Timestamps)
		if err == nil && snap != nil {
			if saveErr := e.rollovers.SaveRollover(ctx, e.CurrentTick(), snap); saveErr != nil {
				return 0, saveErr
			}
			e.emitStreamEvent(events.EventKindRollover, "rollover snapshot persisted")
		}
	default:
		err = e.buf.Append(batch.Data, batch.Timestamps)
	}
	if err != nil {
		e.Logger.Warn().Err(err).Msg("batch rejected")
		e.receiptHistory.AddError(batch.BatchID, err)
		return 0, nil
	}

	wrapped := e.buf.Wraps() > wrapsBefore
	e.receiptHistory.SetResult(batch.BatchID, len(batch.Timestamps), wrapped, grown)
	if wrapped {
		e.emitStreamEvent(events.EventKindWrap, "sample store wrapped")
	}
	if grown {
		e.emitStreamEvent(events.EventKindExpand, "sample store grew")
	}
	return len(batch.Timestamps), nil
}

func (e *Engine) emitStreamEvent(kind, msg string) {
	newest, _ := e.buf.Newest()
	err := e.eventHub.EmitEvent(&events.StreamEvent{
		Kind:      kind,
		Tick:      e.CurrentTick(),
		Timestamp: newest,
		Message:   msg,
	})
	if err != nil {
		e.Logger.Warn().Err(err).Msg("failed to emit stream event")
	}
}
