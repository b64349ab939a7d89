package redis

import (
	"context"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"pkg.signalworks.dev/signal-engine/pulse/ring"
)

// RolloverStorage persists the snapshot a wrap of the sample store produces, so a restarted
// stream can resume queries from the last full window instead of an empty one.
type RolloverStorage struct {
	Client    *redis.Client
	Namespace string
}

func NewRolloverStorage(client *redis.Client, namespace string) RolloverStorage {
	return RolloverStorage{
		Client:    client,
		Namespace: namespace,
	}
}

// SaveRollover stores the snapshot under its tick and advances the latest-tick pointer.
func (r *RolloverStorage) SaveRollover(ctx context.Context, tick uint64, snap *ring.Snapshot) error {
	if snap == nil {
		return eris.New("cannot save a nil rollover snapshot")
	}
	bz, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "failed to marshal rollover snapshot")
	}
	if err := r.Client.Set(ctx, rolloverKey(r.Namespace, tick), bz, 0).Err(); err != nil {
		return eris.Wrap(err, "")
	}
	if err := r.Client.Set(ctx, latestRolloverTickKey(r.Namespace), tick, 0).Err(); err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

// LoadRollover fetches the snapshot saved at the given tick. A missing snapshot is returned as
// (nil, nil); only transport and decode failures are errors.
func (r *RolloverStorage) LoadRollover(ctx context.Context, tick uint64) (*ring.Snapshot, error) {
	bz, err := r.Client.Get(ctx, rolloverKey(r.Namespace, tick)).Bytes()
	if eris.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, eris.Wrap(err, "")
	}
	snap := new(ring.Snapshot)
	if err := json.Unmarshal(bz, snap); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal rollover snapshot")
	}
	return snap, nil
}

// LoadLatestRollover fetches the most recently saved snapshot and the tick it was captured at.
// A namespace with no rollover history yields (nil, 0, nil).
func (r *RolloverStorage) LoadLatestRollover(ctx context.Context) (*ring.Snapshot, uint64, error) {
	tick, err := r.Client.Get(ctx, latestRolloverTickKey(r.Namespace)).Uint64()
	if eris.Is(err, redis.Nil) {
		return nil, 0, nil
	} else if err != nil {
		return nil, 0, eris.Wrap(err, "")
	}
	snap, err := r.LoadRollover(ctx, tick)
	if err != nil {
		return nil, 0, err
	}
	return snap, tick, nil
}
