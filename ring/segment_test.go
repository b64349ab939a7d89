package ring_test

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestSingleSampleSegment(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 100)
	data, timestamps := evenBatch(2, 60, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	seg, ok := buf.Segment(0.30, 0, 0, 0, 0.5)
	assert.Check(t, ok)
	assert.Equal(t, 1, seg.Len())
	assert.Check(t, approx(seg.Timestamps[0], 0.30))
	assert.Equal(t, data[0][30], seg.Data[0][0])
	assert.Equal(t, data[1][30], seg.Data[1][0])
}

func TestMalformedWindowReturnsUnavailable(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 60, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	_, ok := buf.Segment(0.30, 0.05, -0.05, 0, 1)
	assert.Check(t, !ok)
}

func TestSegmentBeforeFirstAppendIsUnavailable(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	_, ok := buf.Segment(0.5, -0.1, 0.1, 0, 1)
	assert.Check(t, !ok)
}

func TestSegmentWithUnresolvedEndpointIsUnavailable(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 60, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	// The upper endpoint reaches past the newest sample.
	_, ok := buf.Segment(0.55, -0.05, 0.30, 0, 1)
	assert.Check(t, !ok)
}

func TestWrapStitchingPreservesChronology(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 100)

	data, timestamps := evenBatch(2, 80, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	data, timestamps = evenBatch(2, 40, 0.80, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, 20, buf.Cursor())

	// Spans slots 90..99 and 0..9: ten pre-boundary samples stitched to ten post-boundary ones.
	seg, ok := buf.Segment(1.00, -0.10, 0.10, 0, 0.5)
	assert.Check(t, ok)
	assert.Equal(t, 20, seg.Len())
	for i := 0; i < 20; i++ {
		want := 0.90 + float64(i)*0.01
		assert.Check(t, approx(seg.Timestamps[i], want), "sample %d: got %f want %f", i, seg.Timestamps[i], want)
	}
	for c := 0; c < 2; c++ {
		for i := range seg.Timestamps {
			assert.Equal(t, float64(c)*10000+seg.Timestamps[i], seg.Data[c][i])
		}
	}
}

func TestWindowAnchorsAtNewestSample(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 80, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	data, timestamps = evenBatch(1, 40, 0.80, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	// Spans are half-open at the anchor, so the window covers [tc-0.20, tc).
	seg, ok := buf.Window(0.20, 0, 0.5)
	assert.Check(t, ok)
	assert.Equal(t, 20, seg.Len())
	assert.Check(t, approx(seg.Timestamps[0], 0.99))
	assert.Check(t, approx(seg.Timestamps[seg.Len()-1], 1.18))
}

func TestSegmentAtIndexUsesStoredPivot(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 60, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	seg, ok := buf.SegmentAtIndex(30, -0.05, 0.05, 0, 0.5)
	assert.Check(t, ok)
	assert.Check(t, seg.Len() >= 9 && seg.Len() <= 11, "got %d samples", seg.Len())
	assert.Check(t, approx(seg.Timestamps[0], 0.25))

	_, ok = buf.SegmentAtIndex(99, -0.05, 0.05, 0, 0.5)
	assert.Check(t, !ok, "unwritten pivot slot must be unavailable")
}

func TestSegmentCopiesOutOfTheStore(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 60, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))

	seg, ok := buf.Segment(0.30, -0.05, 0.05, 0, 0.5)
	assert.Check(t, ok)
	before := seg.Data[0][0]

	// Lap the buffer; a previously extracted segment must be unaffected.
	data, timestamps = evenBatch(1, 200, 0.60, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, before, seg.Data[0][0])
}

// The end-to-end scenario: a 1-second 2048 Hz buffer fed two 500-sample batches with a small
// inter-batch gap, queried around t=0.1.
func TestEndToEndIndexAndSegment(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 2048)

	first := make([]float64, 500)
	for i := range first {
		first[i] = 0.2439 * float64(i) / 499
	}
	second := make([]float64, 500)
	for i := range second {
		second[i] = 0.25 + 0.24*float64(i)/499
	}
	assert.NilError(t, buf.Append(batchForTimestamps(2, first), first))
	assert.NilError(t, buf.Append(batchForTimestamps(2, second), second))

	idx, wrapped := buf.FindIndex(0.1, 0, 1)
	assert.Check(t, !wrapped)
	assert.Check(t, idx >= 203 && idx <= 207, "got index %d", idx)
	got, ok := buf.TimestampAt(idx)
	assert.Check(t, ok)
	assert.Check(t, approx3(got, 0.1), "slot timestamp %f", got)

	seg, ok := buf.Segment(0.1, -0.05, 0.05, 0, 1)
	assert.Check(t, ok)
	assert.Check(t, seg.Len() >= 200 && seg.Len() <= 210, "got %d samples", seg.Len())
	assert.Check(t, seg.Timestamps[0] >= 0.045 && seg.Timestamps[0] <= 0.055)
	last := seg.Timestamps[seg.Len()-1]
	assert.Check(t, last >= 0.145 && last <= 0.155)
}

func batchForTimestamps(channels int, timestamps []float64) [][]float64 {
	data := make([][]float64, channels)
	for c := range data {
		row := make([]float64, len(timestamps))
		for i := range row {
			row[i] = float64(c)*10000 + timestamps[i]
		}
		data[c] = row
	}
	return data
}

func approx(got, want float64) bool  { return got > want-1e-9 && got < want+1e-9 }
func approx3(got, want float64) bool { return got > want-2e-3 && got < want+2e-3 }
