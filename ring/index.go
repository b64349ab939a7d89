package ring

import "math"

// NoIndex is the recoverable "outside retained window" result of FindIndex. Consumers should
// treat it as "try again later", never as an error to propagate.
const NoIndex = -1

// FindIndex locates the slot whose recorded timestamp is closest to t, tolerating clock drift
// between the producer and the nominal rate without a full scan.
//
// The returned wrapped flag marks a slot that sits physically on the far side of the wrap
// boundary relative to the write cursor: it is later in the array but logically earlier in time.
//
// errorMargin absorbs small producer jitter: a t that falls just outside the retained window is
// retried once at t-errorMargin before being rejected. toleranceScale scales the acceptance
// window of the interpolated guess in units of the effective sample period.
//
// The search is an O(1) interpolation from the slot-0 timestamp, followed by a bounded local
// scan when the interpolated slot misses the tolerance window. If the scan exhausts its
// neighborhood the interpolated guess is returned as a degraded-precision answer; the result is
// always well defined.
func (b *Buffer) FindIndex(t, errorMargin, toleranceScale float64) (int, bool) {
	if b.filled == 0 || b.effectiveRate <= 0 {
		return NoIndex, false
	}
	tc, _ := b.Newest()
	retained := b.RetainedDuration()
	if t > tc || tc-t > retained {
		t -= errorMargin
		if t > tc || tc-t > retained {
			return NoIndex, false
		}
	}

	rate := b.effectiveRate
	period := 1.0 / rate
	t0 := b.timestamps[0]

	guess := int(math.Floor((t - t0) * rate))
	wrapped := false
	if guess < 0 {
		// The slot is physically after the cursor: it was written before the sample now in
		// slot 0 and survived the last wrap.
		guess = b.capacity + guess
		wrapped = true
		if guess < b.cursor {
			return NoIndex, false
		}
	} else if newest := b.newestSlot(); guess > newest && !b.slotWrapped(guess) {
		guess = newest
	}
	if guess >= b.capacity {
		guess = b.capacity - 1
	}
	if guess < 0 {
		guess = 0
	}
	if guess >= b.filled {
		// Interpolation landed on a never-written slot; the query is ahead of the stream.
		return NoIndex, false
	}

	tolerance := toleranceScale * period
	err := b.timestamps[guess] - t
	if math.Abs(err) <= tolerance {
		return guess, wrapped
	}

	// Local refinement: scan as many slots as the error is worth, toward the sign of the
	// error, treating the two halves around the wrap boundary as one logical range.
	width := int(math.Round(math.Abs(err) * rate))
	step := -1
	if err < 0 {
		step = 1
	}
	idx := guess
	for i := 0; i < width; i++ {
		idx += step
		if idx < 0 {
			idx = b.capacity - 1
		} else if idx >= b.capacity {
			idx = 0
		}
		if idx >= b.filled {
			break
		}
		if math.Abs(b.timestamps[idx]-t) <= tolerance {
			return idx, b.slotWrapped(idx)
		}
	}
	// Neighborhood exhausted: fall back to the interpolated guess with a freshly computed
	// wrap flag rather than anything stale.
	return guess, b.slotWrapped(guess)
}

func (b *Buffer) newestSlot() int {
	last := b.cursor - 1
	if last < 0 {
		last = b.capacity - 1
	}
	return last
}

// slotWrapped reports whether the given slot lies on the far side of the wrap boundary. Slots
// at or past the cursor hold samples written before the current slot-0 sample; when the cursor
// sits at 0 the array is purely chronological and nothing is wrapped.
func (b *Buffer) slotWrapped(idx int) bool {
	return b.filled == b.capacity && b.cursor > 0 && idx >= b.cursor
}
