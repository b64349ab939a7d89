package engine

import (
	"pkg.signalworks.dev/signal-engine/pulse/ring"
)

// StreamInfo is a point-in-time description of the stream and its store.
type StreamInfo struct {
	Namespace     string  `json:"namespace"`
	Channels      int     `json:"channels"`
	Capacity      int     `json:"capacity"`
	Filled        int     `json:"filled"`
	Stage         string  `json:"stage"`
	NominalRate   float64 `json:"nominalRate"`
	EffectiveRate float64 `json:"effectiveRate"`
	Newest        float64 `json:"newest"`
	Wraps         uint64  `json:"wraps"`
	Tick          uint64  `json:"tick"`
}

// read runs fn against the sample store on the tick goroutine, so it never observes a batch
// halfway applied. While the loop is stopped the store is not being written to and fn runs
// directly.
func (e *Engine) read(fn func(buf *ring.Buffer)) {
	if !e.isLoopRunning.Load() {
		fn(e.buf)
		return
	}
	done := make(chan struct{})
	e.readCh <- readRequest{read: fn, done: done}
	<-done
}

// FindIndex resolves a timestamp to a slot index in the store. See ring.Buffer.FindIndex for
// the semantics of the margin, the tolerance, and the wrapped flag.
func (e *Engine) FindIndex(t, errorMargin, toleranceScale float64) (idx int, wrapped bool) {
	e.read(func(buf *ring.Buffer) {
		idx, wrapped = buf.FindIndex(t, errorMargin, toleranceScale)
	})
	return idx, wrapped
}

// GetSegment extracts the samples spanning [pivot+x, pivot+y].
func (e *Engine) GetSegment(pivot, x, y, errorMargin, toleranceScale float64) (seg ring.Segment, ok bool) {
	e.read(func(buf *ring.Buffer) {
		seg, ok = buf.Segment(pivot, x, y, errorMargin, toleranceScale)
	})
	return seg, ok
}

// GetSegmentAtIndex extracts a segment around a pivot given as a slot index.
func (e *Engine) GetSegmentAtIndex(pivotIdx int, x, y, errorMargin, toleranceScale float64) (seg ring.Segment, ok bool) {
	e.read(func(buf *ring.Buffer) {
		seg, ok = buf.SegmentAtIndex(pivotIdx, x, y, errorMargin, toleranceScale)
	})
	return seg, ok
}

// GetWindow extracts the most recent seconds of samples, anchored at the newest sample.
func (e *Engine) GetWindow(seconds, errorMargin, toleranceScale float64) (seg ring.Segment, ok bool) {
	e.read(func(buf *ring.Buffer) {
		seg, ok = buf.Window(seconds, errorMargin, toleranceScale)
	})
	return seg, ok
}

func (e *Engine) StreamInfo() (info StreamInfo) {
	e.read(func(buf *ring.Buffer) {
		newest, _ := buf.Newest()
		info = StreamInfo{
			Namespace:     e.namespace,
			Channels:      buf.Channels(),
			Capacity:      buf.Capacity(),
			Filled:        buf.Filled(),
			Stage:         buf.Stage().String(),
			NominalRate:   buf.NominalRate(),
			EffectiveRate: buf.EffectiveRate(),
			Newest:        newest,
			Wraps:         buf.Wraps(),
			Tick:          e.CurrentTick(),
		}
	})
	return info
}
