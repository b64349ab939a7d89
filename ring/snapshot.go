package ring

// Snapshot is a full chronological copy of the buffer's contents, captured at a wrap boundary.
// At the moment the cursor reaches capacity the physical slot order is the chronological order,
// so a snapshot is a plain copy: slot 0 holds the oldest retained sample.
type Snapshot struct {
	Channels      int         `json:"channels"`
	Data          [][]float64 `json:"data"`
	Timestamps    []float64   `json:"timestamps"`
	NominalRate   float64     `json:"nominalRate"`
	EffectiveRate float64     `json:"effectiveRate"`
}

func (b *Buffer) snapshot() *Snapshot {
	data := make([][]float64, b.channels)
	for c := range data {
		row := make([]float64, b.capacity)
		copy(row, b.data[c])
		data[c] = row
	}
	timestamps := make([]float64, b.capacity)
	copy(timestamps, b.timestamps)
	return &Snapshot{
		Channels:      b.channels,
		Data:          data,
		Timestamps:    timestamps,
		NominalRate:   b.nominalRate,
		EffectiveRate: b.effectiveRate,
	}
}
