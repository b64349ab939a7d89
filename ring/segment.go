package ring

// Segment is a chronologically ordered run of samples extracted from the buffer. Data rows and
// Timestamps are copies; holding a Segment across later appends is safe.
type Segment struct {
	Data       [][]float64 `json:"data"`
	Timestamps []float64   `json:"timestamps"`
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int { return len(s.Timestamps) }

// Segment resolves the run of samples spanning [pivot+x, pivot+y]. The pivot and both endpoints
// are resolved through FindIndex; when exactly one endpoint lies on the far side of the wrap
// boundary the two physical sub-ranges are stitched back into chronological order.
//
// All "not ready" and malformed-window conditions report ok=false: unresolved endpoints, a
// window with x > y, or endpoints touching never-written slots. A zero-width window (x == y)
// yields a single sample.
func (b *Buffer) Segment(pivot, x, y, errorMargin, toleranceScale float64) (Segment, bool) {
	if x > y {
		return Segment{}, false
	}
	if m, _ := b.FindIndex(pivot, errorMargin, toleranceScale); m == NoIndex {
		return Segment{}, false
	}
	lo, loWrapped := b.FindIndex(pivot+x, errorMargin, toleranceScale)
	hi, hiWrapped := b.FindIndex(pivot+y, errorMargin, toleranceScale)
	if lo == NoIndex || hi == NoIndex {
		return Segment{}, false
	}

	if loWrapped == hiWrapped {
		if hi < lo {
			return Segment{}, false
		}
		n := hi - lo
		if n == 0 {
			n = 1
		}
		if lo+n > b.filled {
			return Segment{}, false
		}
		return b.slice(lo, n), true
	}

	// Exactly one endpoint crossed the wrap boundary: the wrapped endpoint is chronologically
	// first even though it sits later in the array.
	start, end := lo, hi
	if hiWrapped {
		start, end = hi, lo
	}
	return b.stitch(start, end), true
}

// SegmentAtIndex extracts a segment around a pivot given as a slot index instead of a
// timestamp. The pivot slot must hold a real sample.
func (b *Buffer) SegmentAtIndex(pivotIdx int, x, y, errorMargin, toleranceScale float64) (Segment, bool) {
	pivot, ok := b.TimestampAt(pivotIdx)
	if !ok {
		return Segment{}, false
	}
	return b.Segment(pivot, x, y, errorMargin, toleranceScale)
}

// Window returns the rolling window of the most recent seconds of samples, anchored at the
// newest written sample. It shares the index-resolution primitive with Segment.
func (b *Buffer) Window(seconds, errorMargin, toleranceScale float64) (Segment, bool) {
	tc, ok := b.Newest()
	if !ok || seconds < 0 {
		return Segment{}, false
	}
	return b.Segment(tc, -seconds, 0, errorMargin, toleranceScale)
}

func (b *Buffer) slice(lo, n int) Segment {
	data := make([][]float64, b.channels)
	for c := range data {
		row := make([]float64, n)
		copy(row, b.data[c][lo:lo+n])
		data[c] = row
	}
	timestamps := make([]float64, n)
	copy(timestamps, b.timestamps[lo:lo+n])
	return Segment{Data: data, Timestamps: timestamps}
}

func (b *Buffer) stitch(start, end int) Segment {
	n := (b.capacity - start) + end
	data := make([][]float64, b.channels)
	for c := range data {
		row := make([]float64, 0, n)
		row = append(row, b.data[c][start:b.capacity]...)
		row = append(row, b.data[c][:end]...)
		data[c] = row
	}
	timestamps := make([]float64, 0, n)
	timestamps = append(timestamps, b.timestamps[start:b.capacity]...)
	timestamps = append(timestamps, b.timestamps[:end]...)
	return Segment{Data: data, Timestamps: timestamps}
}
