// Package pulse assembles a time-indexed stream service: a ring-buffered sample store fed by a
// tick loop, queried over HTTP, with rollover snapshots persisted to Redis.
package pulse

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"pkg.signalworks.dev/signal-engine/pulse/engine"
	"pkg.signalworks.dev/signal-engine/pulse/ring"
	"pkg.signalworks.dev/signal-engine/pulse/server"
	"pkg.signalworks.dev/signal-engine/pulse/statsd"
	"pkg.signalworks.dev/signal-engine/pulse/storage/redis"
	"pkg.signalworks.dev/signal-engine/pulse/telemetry"
)

const (
	RedisDialTimeOut = 15
)

// Stream ties the engine, its HTTP server, and the optional Redis rollover store together.
type Stream struct {
	engine *engine.Engine

	// Storage
	redisStorage *redis.Storage

	// Networking
	server        *server.Server
	serverOptions []server.Option

	// Telemetry
	telemetry *telemetry.Manager

	// Tick
	tickChannel     <-chan time.Time
	tickDoneChannel chan<- uint64
}

// NewStream creates a Stream from the environment config. When REDIS_ADDRESS is set, the last
// rollover snapshot is loaded so queries resume over the previous window; without it the store
// starts empty and wraps simply evict.
func NewStream(opts ...StreamOption) (*Stream, error) {
	engineOptions, serverOptions, streamOptions := separateOptions(opts)

	// Load config. Fallback value is used if it's not set.
	cfg, err := GetStreamConfig()
	if err != nil {
		return nil, eris.Wrap(err, "Failed to load config to start stream")
	}

	log.Info().Msgf("Creating a new stream %q", cfg.StreamNamespace)

	var redisStorage *redis.Storage
	if cfg.RedisAddress != "" {
		store := redis.NewRedisStorage(redis.Options{
			Addr:        cfg.RedisAddress,
			Password:    cfg.RedisPassword,
			DB:          0,                              // use default DB
			DialTimeout: RedisDialTimeOut * time.Second, // Increase startup dial timeout
		}, cfg.StreamNamespace)
		redisStorage = &store
	}

	buf, startTick, err := bootstrapBuffer(cfg, redisStorage)
	if err != nil {
		return nil, err
	}

	if redisStorage != nil {
		engineOptions = append(engineOptions,
			engine.WithRolloverStore(&redisStorage.RolloverStorage),
			engine.WithStartTick(startTick),
		)
	}
	eng, err := engine.New(cfg.StreamNamespace, buf, engineOptions...)
	if err != nil {
		return nil, err
	}

	stream := &Stream{
		engine: eng,

		redisStorage: redisStorage,

		server:        nil, // Will be initialized in StartStream
		serverOptions: append([]server.Option{server.WithPort(cfg.StreamPort)}, serverOptions...),

		tickChannel:     time.Tick(time.Duration(cfg.TickIntervalMillis) * time.Millisecond), //nolint:staticcheck // its ok.
		tickDoneChannel: nil,                                                                 // Will be injected via options
	}

	// Apply options
	for _, opt := range streamOptions {
		opt(stream)
	}

	var metricTags []string
	metricTags = append(metricTags, "stream_namespace:"+cfg.StreamNamespace)

	if cfg.StatsdAddress != "" {
		if err = statsd.Init(cfg.StatsdAddress, metricTags); err != nil {
			return nil, eris.Wrap(err, "unable to init statsd")
		}
	} else {
		log.Logger.Warn().Msg("statsd is disabled")
	}

	if cfg.TraceEnabled || cfg.ProfilerEnabled {
		stream.telemetry, err = telemetry.New(cfg.TraceEnabled, cfg.ProfilerEnabled)
		if err != nil {
			return nil, eris.Wrap(err, "unable to init telemetry")
		}
	}

	return stream, nil
}

// bootstrapBuffer builds the sample store, resuming from the latest persisted rollover when
// one exists.
func bootstrapBuffer(cfg StreamConfig, store *redis.Storage) (*ring.Buffer, uint64, error) {
	if store != nil {
		snap, tick, err := store.LoadLatestRollover(context.Background())
		if err != nil {
			return nil, 0, eris.Wrap(err, "failed to load latest rollover")
		}
		if snap != nil {
			buf, err := ring.NewBufferFromSnapshot(snap, cfg.StreamNominalRate)
			if err != nil {
				return nil, 0, err
			}
			log.Info().
				Uint64("tick", tick).
				Int("samples", len(snap.Timestamps)).
				Msg("Resumed stream from rollover snapshot")
			// Resume the tick counter after the persisted tick.
			return buf, tick + 1, nil
		}
	}
	buf, err := ring.NewBuffer(cfg.StreamChannels, cfg.StreamDurationSeconds, cfg.StreamNominalRate)
	if err != nil {
		return nil, 0, err
	}
	return buf, 0, nil
}

func (s *Stream) Engine() *engine.Engine {
	return s.engine
}

// CurrentTick returns the current tick of the stream.
func (s *Stream) CurrentTick() uint64 {
	return s.engine.CurrentTick()
}

// Tick performs one tick by hand. Useful in tests; StartStream drives ticks from the tick
// channel otherwise.
func (s *Stream) Tick(ctx context.Context) error {
	return s.engine.Tick(ctx)
}

// StartStream starts the tick loop and the HTTP server. Each time a message arrives on the
// tick channel a tick is attempted. If StartStream doesn't encounter any errors, it will block
// forever, running the server and ticking the stream in the background.
func (s *Stream) StartStream() error {
	s.engine.StartTickLoop(context.Background(), s.tickChannel, s.tickDoneChannel)

	var err error
	s.server, err = server.New(s.engine, s.serverOptions...)
	if err != nil {
		return err
	}

	// Handle shutdown via a signal
	s.handleShutdown()

	return s.server.Serve()
}

// Shutdown stops the server, the tick loop, and closes the storage connection.
func (s *Stream) Shutdown() error {
	if s.server != nil {
		if err := s.server.Shutdown(); err != nil {
			return err
		}
	}
	if err := s.engine.Shutdown(); err != nil {
		return err
	}
	if s.redisStorage != nil {
		if err := s.redisStorage.Close(); err != nil {
			return err
		}
	}
	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) handleShutdown() {
	signalChannel := make(chan os.Signal, 1)
	go func() {
		signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
		for sig := range signalChannel {
			if sig == syscall.SIGINT || sig == syscall.SIGTERM {
				if err := s.Shutdown(); err != nil {
					log.Error().Err(err).Msg("There was an error during shutdown")
				}
				return
			}
		}
	}()
}
