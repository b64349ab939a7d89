package streamstage

import "sync/atomic"

type Stage int32

type Atomic interface {
	CompareAndSwap(oldStage, newStage Stage) (swapped bool)
	Load() Stage
	Store(val Stage)
	Swap(newStage Stage) (oldStage Stage)
}

const (
	// StageEmpty is the initial stage; no sample has ever been written.
	StageEmpty Stage = iota
	// StageFilling means at least one sample has been written but the buffer has not yet wrapped.
	StageFilling
	// StageFull means the buffer has wrapped at least once; every slot holds a real sample.
	StageFull
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "Empty"
	case StageFilling:
		return "Filling"
	case StageFull:
		return "Full"
	}
	return "Unknown"
}

type atomicStage struct {
	value *atomic.Value
}

func NewAtomic() Atomic {
	a := &atomicStage{
		value: &atomic.Value{},
	}
	a.Store(StageEmpty)
	return a
}

func (a *atomicStage) CompareAndSwap(oldStage, newStage Stage) (swapped bool) {
	return a.value.CompareAndSwap(oldStage, newStage)
}

func (a *atomicStage) Load() Stage {
	return a.value.Load().(Stage)
}

func (a *atomicStage) Store(val Stage) {
	a.value.Store(val)
}

func (a *atomicStage) Swap(newStage Stage) (oldStage Stage) {
	return a.value.Swap(newStage).(Stage)
}
