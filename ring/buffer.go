// Package ring implements a fixed-capacity, time-indexed sample store for live multichannel
// streams. A single producer appends timestamped batches; any number of consumers resolve
// wall-clock times to slots and extract contiguous (possibly wrap-stitched) segments.
//
// The buffer itself performs no locking. It is designed to be owned by a single scheduling
// boundary (see the engine package) so that a wraparound write is never observed half-applied.
package ring

import (
	"math"

	"pkg.signalworks.dev/signal-engine/pulse/streamstage"
)

// rateSmoothing is the weight of the exponential effective-rate update. It deliberately favors
// responsiveness to short-term drift over long-term stability.
const rateSmoothing = 0.65

// Buffer is a channels x capacity rolling sample store with a parallel timestamp vector.
// Slots are written strictly in physical order; the write cursor wraps back to slot 0 when it
// reaches capacity, overwriting the oldest retained samples.
type Buffer struct {
	data       [][]float64 // one row per channel, each row capacity long
	timestamps []float64

	channels int
	capacity int
	cursor   int // next-write slot, 0 <= cursor < capacity
	filled   int // number of slots holding a real sample; replaces sentinel timestamps
	wraps    uint64

	tloop    float64 // timestamp of the sample occupying slot 0 after the most recent wrap
	duration float64 // configured retention target in seconds

	nominalRate   float64 // configured samples/sec, fixed at construction
	effectiveRate float64 // smoothed measured samples/sec; 0 until the first batch lands

	stage streamstage.Atomic
}

// NewBuffer creates an empty buffer sized to retain durationSeconds of samples at nominalRate.
func NewBuffer(channels int, durationSeconds, nominalRate float64) (*Buffer, error) {
	if channels <= 0 || durationSeconds <= 0 || nominalRate <= 0 {
		return nil, ErrInvalidDimensions
	}
	capacity := int(math.Round(durationSeconds * nominalRate))
	if capacity <= 0 {
		return nil, ErrInvalidDimensions
	}
	data := make([][]float64, channels)
	for c := range data {
		data[c] = make([]float64, capacity)
	}
	return &Buffer{
		data:        data,
		timestamps:  make([]float64, capacity),
		channels:    channels,
		capacity:    capacity,
		duration:    durationSeconds,
		nominalRate: nominalRate,
		stage:       streamstage.NewAtomic(),
	}, nil
}

// NewBufferFromSnapshot pre-seeds a buffer from a previously captured rollover snapshot.
// Snapshots are taken at wrap boundaries, so their physical order is chronological: slot 0
// holds the oldest retained sample and the next write will overwrite it.
func NewBufferFromSnapshot(snap *Snapshot, nominalRate float64) (*Buffer, error) {
	if snap == nil || len(snap.Timestamps) == 0 || snap.Channels <= 0 {
		return nil, ErrEmptySnapshot
	}
	capacity := len(snap.Timestamps)
	if len(snap.Data) != snap.Channels {
		return nil, ErrShapeMismatch
	}
	data := make([][]float64, snap.Channels)
	for c, row := range snap.Data {
		if len(row) != capacity {
			return nil, ErrShapeMismatch
		}
		data[c] = make([]float64, capacity)
		copy(data[c], row)
	}
	timestamps := make([]float64, capacity)
	copy(timestamps, snap.Timestamps)

	effective := snap.EffectiveRate
	if effective <= 0 && capacity > 1 {
		if span := timestamps[capacity-1] - timestamps[0]; span > 0 {
			effective = float64(capacity) / span
		}
	}
	if nominalRate <= 0 {
		nominalRate = snap.NominalRate
	}
	b := &Buffer{
		data:          data,
		timestamps:    timestamps,
		channels:      snap.Channels,
		capacity:      capacity,
		filled:        capacity,
		cursor:        0,
		tloop:         timestamps[0],
		duration:      float64(capacity) / nominalRate,
		nominalRate:   nominalRate,
		effectiveRate: effective,
		stage:         streamstage.NewAtomic(),
	}
	b.stage.Store(streamstage.StageFull)
	return b, nil
}

func (b *Buffer) Channels() int          { return b.channels }
func (b *Buffer) Capacity() int          { return b.capacity }
func (b *Buffer) Cursor() int            { return b.cursor }
func (b *Buffer) Filled() int            { return b.filled }
func (b *Buffer) Wraps() uint64          { return b.wraps }
func (b *Buffer) LoopTime() float64      { return b.tloop }
func (b *Buffer) Duration() float64      { return b.duration }
func (b *Buffer) NominalRate() float64   { return b.nominalRate }
func (b *Buffer) EffectiveRate() float64 { return b.effectiveRate }

func (b *Buffer) Stage() streamstage.Stage { return b.stage.Load() }

// RetainedDuration is the time span currently guaranteed queryable.
func (b *Buffer) RetainedDuration() float64 {
	rate := b.effectiveRate
	if rate <= 0 {
		rate = b.nominalRate
	}
	return float64(b.capacity) / rate
}

// Newest returns the timestamp of the most recently written sample.
func (b *Buffer) Newest() (float64, bool) {
	if b.filled == 0 {
		return 0, false
	}
	last := b.cursor - 1
	if last < 0 {
		last = b.capacity - 1
	}
	return b.timestamps[last], true
}

// TimestampAt returns the timestamp stored at the given slot.
func (b *Buffer) TimestampAt(idx int) (float64, bool) {
	if idx < 0 || idx >= b.filled {
		return 0, false
	}
	return b.timestamps[idx], true
}

// Append writes a batch of samples into the buffer, wrapping in place when the batch runs past
// the end of the store. The batch must be shaped channels x n with a length-n timestamp vector;
// a mismatch is a fatal producer bug and is the only error this method returns.
func (b *Buffer) Append(batch [][]float64, timestamps []float64) error {
	_, err := b.append(batch, timestamps, false)
	return err
}

// AppendRollover behaves exactly like Append but, whenever the batch wraps past the end of the
// store, returns a full chronological snapshot of the window completed at the wrap boundary.
// For a batch at least capacity long that window is the batch's own surviving tail. This is
// the only allocation-bearing ingestion path and is opt-in for that reason.
func (b *Buffer) AppendRollover(batch [][]float64, timestamps []float64) (*Snapshot, error) {
	return b.append(batch, timestamps, true)
}

// AppendExpand is the bootstrap-phase variant of Append: if the incoming batch spans more time
// than the buffer's configured duration, capacity is grown (reallocating) so the batch fits.
// It reports whether growth occurred. Once the buffer has wrapped, expansion would scramble
// chronological order, so it degrades to a plain Append.
func (b *Buffer) AppendExpand(batch [][]float64, timestamps []float64) (bool, error) {
	if err := b.checkShape(batch, timestamps); err != nil {
		return false, err
	}
	n := len(timestamps)
	if n == 0 {
		return false, nil
	}
	grown := false
	span := timestamps[n-1] - timestamps[0]
	if span > b.duration && b.Stage() != streamstage.StageFull {
		newCapacity := int(math.Round(span * b.nominalRate))
		if min := b.filled + n; newCapacity < min {
			newCapacity = min
		}
		if newCapacity > b.capacity {
			b.grow(newCapacity)
			b.duration = float64(newCapacity) / b.nominalRate
			grown = true
		}
	}
	_, err := b.append(batch, timestamps, false)
	return grown, err
}

func (b *Buffer) grow(newCapacity int) {
	for c := range b.data {
		row := make([]float64, newCapacity)
		copy(row, b.data[c][:b.filled])
		b.data[c] = row
	}
	timestamps := make([]float64, newCapacity)
	copy(timestamps, b.timestamps[:b.filled])
	b.timestamps = timestamps
	b.capacity = newCapacity
}

func (b *Buffer) checkShape(batch [][]float64, timestamps []float64) error {
	if len(batch) != b.channels {
		return ErrShapeMismatch
	}
	for _, row := range batch {
		if len(row) != len(timestamps) {
			return ErrShapeMismatch
		}
	}
	return nil
}

func (b *Buffer) append(batch [][]float64, timestamps []float64, wantRollover bool) (*Snapshot, error) {
	if err := b.checkShape(batch, timestamps); err != nil {
		return nil, err
	}
	n := len(timestamps)
	if n == 0 {
		return nil, nil
	}
	b.stage.CompareAndSwap(streamstage.StageEmpty, streamstage.StageFilling)

	var snap *Snapshot
	switch {
	case n >= b.capacity:
		// Batch alone covers the whole store; only the final capacity samples survive.
		off := n - b.capacity
		for c := range b.data {
			copy(b.data[c], batch[c][off:])
		}
		copy(b.timestamps, timestamps[off:])
		b.tloop = timestamps[off]
		b.cursor = 0
		b.filled = b.capacity
		b.wraps++
		if wantRollover {
			// Capture after the copy: the surviving window is full and chronological.
			snap = b.snapshot()
		}
	case b.cursor+n <= b.capacity:
		for c := range b.data {
			copy(b.data[c][b.cursor:], batch[c])
		}
		copy(b.timestamps[b.cursor:], timestamps)
		b.cursor += n
		if b.filled < b.cursor {
			b.filled = b.cursor
		}
		if b.cursor == b.capacity {
			// Landed exactly on the boundary: the next write resumes at slot 0.
			b.cursor = 0
			b.wraps++
			if wantRollover {
				snap = b.snapshot()
			}
		}
	default:
		head := b.capacity - b.cursor
		for c := range b.data {
			copy(b.data[c][b.cursor:], batch[c][:head])
		}
		copy(b.timestamps[b.cursor:], timestamps[:head])
		b.filled = b.capacity
		if wantRollover {
			// Capture the store after the tail fills but before slot 0 is overwritten.
			snap = b.snapshot()
		}
		rem := n - head
		for c := range b.data {
			copy(b.data[c], batch[c][head:])
		}
		copy(b.timestamps, timestamps[head:])
		b.tloop = timestamps[head]
		b.cursor = rem
		b.wraps++
	}

	if b.filled == b.capacity {
		b.stage.Store(streamstage.StageFull)
	}
	b.updateRate(timestamps)
	return snap, nil
}

// updateRate folds the batch's instantaneous sample rate into the smoothed estimate. A batch
// spanning zero time carries no rate information and leaves the estimate untouched.
func (b *Buffer) updateRate(timestamps []float64) {
	n := len(timestamps)
	span := timestamps[n-1] - timestamps[0]
	if span <= 0 {
		return
	}
	instant := float64(n) / span
	if b.effectiveRate <= 0 {
		b.effectiveRate = instant
		return
	}
	b.effectiveRate += rateSmoothing * (instant - b.effectiveRate)
}
