package ring_test

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"

	"pkg.signalworks.dev/signal-engine/pulse/ring"
	"pkg.signalworks.dev/signal-engine/pulse/streamstage"
)

// evenBatch builds a channels x n batch with evenly spaced timestamps starting at t0. Sample
// values encode channel and time so copies can be traced through wraps and stitches.
func evenBatch(channels, n int, t0, dt float64) ([][]float64, []float64) {
	timestamps := make([]float64, n)
	for i := range timestamps {
		timestamps[i] = t0 + float64(i)*dt
	}
	data := make([][]float64, channels)
	for c := range data {
		row := make([]float64, n)
		for i := range row {
			row[i] = float64(c)*10000 + timestamps[i]
		}
		data[c] = row
	}
	return data, timestamps
}

func newTestBuffer(t *testing.T, channels int, duration, rate float64) *ring.Buffer {
	t.Helper()
	buf, err := ring.NewBuffer(channels, duration, rate)
	assert.NilError(t, err)
	return buf
}

func TestNewBufferRejectsBadDimensions(t *testing.T) {
	_, err := ring.NewBuffer(0, 1, 100)
	assert.ErrorIs(t, err, ring.ErrInvalidDimensions)
	_, err = ring.NewBuffer(2, 0, 100)
	assert.ErrorIs(t, err, ring.ErrInvalidDimensions)
	_, err = ring.NewBuffer(2, 1, -5)
	assert.ErrorIs(t, err, ring.ErrInvalidDimensions)
}

func TestCapacityIsDurationTimesRate(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 100)
	assert.Equal(t, 100, buf.Capacity())
	assert.Equal(t, 2, buf.Channels())
}

func TestShapeMismatchIsFatal(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 100)

	data, timestamps := evenBatch(2, 10, 0, 0.01)
	data[1] = data[1][:5]
	err := buf.Append(data, timestamps)
	assert.ErrorIs(t, err, ring.ErrShapeMismatch)

	wrongChannels, timestamps := evenBatch(3, 10, 0, 0.01)
	err = buf.Append(wrongChannels, timestamps)
	assert.ErrorIs(t, err, ring.ErrShapeMismatch)

	// A bad batch must not advance the cursor.
	assert.Equal(t, 0, buf.Cursor())
	assert.Equal(t, streamstage.StageEmpty, buf.Stage())
}

func TestStageTransitions(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 10)
	assert.Equal(t, streamstage.StageEmpty, buf.Stage())

	data, timestamps := evenBatch(1, 4, 0, 0.1)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, streamstage.StageFilling, buf.Stage())
	assert.Equal(t, 4, buf.Filled())

	data, timestamps = evenBatch(1, 8, 0.4, 0.1)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, streamstage.StageFull, buf.Stage())
	assert.Equal(t, 10, buf.Filled())
	assert.Equal(t, uint64(1), buf.Wraps())
}

func TestWrapSplitsBatchInPlace(t *testing.T) {
	buf := newTestBuffer(t, 2, 10, 1) // capacity 10

	first, firstTs := evenBatch(2, 8, 0, 1)
	assert.NilError(t, buf.Append(first, firstTs))
	assert.Equal(t, 8, buf.Cursor())

	second, secondTs := evenBatch(2, 4, 8, 1)
	assert.NilError(t, buf.Append(second, secondTs))

	// Two samples went to the tail, two wrapped to the head.
	assert.Equal(t, 2, buf.Cursor())
	assert.Equal(t, uint64(1), buf.Wraps())
	// tloop is the timestamp of the first sample written at slot 0.
	assert.Equal(t, 10.0, buf.LoopTime())

	ts, ok := buf.TimestampAt(0)
	assert.Check(t, ok)
	assert.Equal(t, 10.0, ts)
	ts, ok = buf.TimestampAt(9)
	assert.Check(t, ok)
	assert.Equal(t, 9.0, ts)
}

func TestExactBoundaryFitCountsAsWrap(t *testing.T) {
	buf := newTestBuffer(t, 1, 10, 1)

	data, timestamps := evenBatch(1, 10, 0, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Equal(t, 0, buf.Cursor())
	assert.Equal(t, uint64(1), buf.Wraps())
	assert.Equal(t, streamstage.StageFull, buf.Stage())
	assert.Assert(t, snap != nil)
	assert.Equal(t, 10, len(snap.Timestamps))
}

func TestRolloverSnapshotIsChronological(t *testing.T) {
	buf := newTestBuffer(t, 2, 10, 1)

	data, timestamps := evenBatch(2, 8, 0, 1)
	assert.NilError(t, buf.Append(data, timestamps))

	data, timestamps = evenBatch(2, 4, 8, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Assert(t, snap != nil)

	// The snapshot captures the store the moment before slot 0 was overwritten: samples 0..9.
	for i, ts := range snap.Timestamps {
		assert.Equal(t, float64(i), ts)
	}
	for c := range snap.Data {
		for i, v := range snap.Data[c] {
			assert.Equal(t, float64(c)*10000+float64(i), v)
		}
	}
}

func TestOversizedRolloverSnapshotIsChronological(t *testing.T) {
	buf := newTestBuffer(t, 1, 10, 1)

	// Park the cursor mid-array in a full store.
	data, timestamps := evenBatch(1, 10, 0, 1)
	assert.NilError(t, buf.Append(data, timestamps))
	data, timestamps = evenBatch(1, 5, 10, 1)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, 5, buf.Cursor())

	// A batch longer than capacity leaves only its own tail behind; the snapshot must be that
	// window in chronological order, not a raw copy straddling the old cursor.
	data, timestamps = evenBatch(1, 12, 15, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Assert(t, snap != nil)
	for i, ts := range snap.Timestamps {
		assert.Equal(t, 17.0+float64(i), ts)
	}

	restored, err := ring.NewBufferFromSnapshot(snap, buf.NominalRate())
	assert.NilError(t, err)
	idx, wrapped := restored.FindIndex(20.0, 0, 0.5)
	assert.Equal(t, 3, idx)
	assert.Check(t, !wrapped)
}

func TestOversizedRolloverIntoFillingStoreStillSnapshots(t *testing.T) {
	buf := newTestBuffer(t, 1, 10, 1)
	data, timestamps := evenBatch(1, 3, 0, 1)
	assert.NilError(t, buf.Append(data, timestamps))

	// The wrap is counted even though the store was not yet full, so the snapshot comes too.
	data, timestamps = evenBatch(1, 15, 3, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Equal(t, uint64(1), buf.Wraps())
	assert.Assert(t, snap != nil)
	assert.Equal(t, 8.0, snap.Timestamps[0])
	assert.Equal(t, 17.0, snap.Timestamps[9])
}

func TestNoRolloverWithoutWrap(t *testing.T) {
	buf := newTestBuffer(t, 1, 10, 1)
	data, timestamps := evenBatch(1, 5, 0, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Assert(t, snap == nil)
}

func TestOversizedBatchKeepsOnlyTail(t *testing.T) {
	buf := newTestBuffer(t, 1, 10, 1)
	data, timestamps := evenBatch(1, 25, 0, 1)
	assert.NilError(t, buf.Append(data, timestamps))

	assert.Equal(t, streamstage.StageFull, buf.Stage())
	assert.Equal(t, 0, buf.Cursor())
	ts, ok := buf.TimestampAt(0)
	assert.Check(t, ok)
	assert.Equal(t, 15.0, ts)
	assert.Equal(t, 15.0, buf.LoopTime())
}

func TestEffectiveRateSeedsFromFirstBatch(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	assert.Equal(t, 0.0, buf.EffectiveRate())

	data, timestamps := evenBatch(1, 50, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	instant := 50.0 / (timestamps[49] - timestamps[0])
	assert.Equal(t, instant, buf.EffectiveRate())
}

func TestEffectiveRateConverges(t *testing.T) {
	buf := newTestBuffer(t, 1, 10.0, 100)

	// Seed with a deliberately slow batch, then feed batches at a steady 200 samples/sec.
	data, timestamps := evenBatch(1, 50, 0, 0.02)
	assert.NilError(t, buf.Append(data, timestamps))

	t0 := timestamps[49] + 0.005
	const target = 200.0
	for i := 0; i < 30; i++ {
		data, timestamps = evenBatch(1, 40, t0, 1.0/target)
		assert.NilError(t, buf.Append(data, timestamps))
		t0 = timestamps[39] + 1.0/target
	}

	// Each update closes 65% of the remaining gap, so thirty batches is plenty.
	want := 40.0 / (39.0 / target)
	assert.Check(t, math.Abs(buf.EffectiveRate()-want) < 1e-6,
		"effective rate %f never converged to %f", buf.EffectiveRate(), want)
}

func TestZeroSpanBatchLeavesRateUntouched(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 100)
	data, timestamps := evenBatch(1, 50, 0, 0.01)
	assert.NilError(t, buf.Append(data, timestamps))
	before := buf.EffectiveRate()

	single, singleTs := evenBatch(1, 1, 0.5, 0.01)
	assert.NilError(t, buf.Append(single, singleTs))
	assert.Equal(t, before, buf.EffectiveRate())
}

func TestAppendExpandGrowsDuringBootstrap(t *testing.T) {
	buf := newTestBuffer(t, 2, 1.0, 10) // capacity 10

	data, timestamps := evenBatch(2, 30, 0, 0.1) // spans 3 seconds
	grown, err := buf.AppendExpand(data, timestamps)
	assert.NilError(t, err)
	assert.Check(t, grown)
	assert.Check(t, buf.Capacity() >= 30, "capacity %d", buf.Capacity())
	assert.Equal(t, 30, buf.Filled())

	ts, ok := buf.TimestampAt(0)
	assert.Check(t, ok)
	assert.Equal(t, 0.0, ts)

	// A batch within the configured duration appends without growing.
	data, timestamps = evenBatch(2, 5, 3.0, 0.1)
	grown, err = buf.AppendExpand(data, timestamps)
	assert.NilError(t, err)
	assert.Check(t, !grown)
}

func TestAppendExpandAfterWrapBehavesAsAppend(t *testing.T) {
	buf := newTestBuffer(t, 1, 1.0, 10)
	data, timestamps := evenBatch(1, 10, 0, 0.1)
	assert.NilError(t, buf.Append(data, timestamps))
	assert.Equal(t, streamstage.StageFull, buf.Stage())

	capacityBefore := buf.Capacity()
	data, timestamps = evenBatch(1, 30, 1.0, 0.1)
	grown, err := buf.AppendExpand(data, timestamps)
	assert.NilError(t, err)
	assert.Check(t, !grown)
	assert.Equal(t, capacityBefore, buf.Capacity())
}

func TestNewBufferFromSnapshotRestoresQueries(t *testing.T) {
	buf := newTestBuffer(t, 2, 10, 1)
	data, timestamps := evenBatch(2, 10, 0, 1)
	snap, err := buf.AppendRollover(data, timestamps)
	assert.NilError(t, err)
	assert.Assert(t, snap != nil)

	restored, err := ring.NewBufferFromSnapshot(snap, buf.NominalRate())
	assert.NilError(t, err)
	assert.Equal(t, streamstage.StageFull, restored.Stage())
	assert.Equal(t, buf.Capacity(), restored.Capacity())
	assert.Equal(t, buf.EffectiveRate(), restored.EffectiveRate())

	idx, wrapped := restored.FindIndex(5.0, 0, 0.5)
	assert.Equal(t, 5, idx)
	assert.Check(t, !wrapped)
}

func TestNewBufferFromSnapshotRejectsEmpty(t *testing.T) {
	_, err := ring.NewBufferFromSnapshot(nil, 100)
	assert.ErrorIs(t, err, ring.ErrEmptySnapshot)
	_, err = ring.NewBufferFromSnapshot(&ring.Snapshot{Channels: 1}, 100)
	assert.ErrorIs(t, err, ring.ErrEmptySnapshot)
}
