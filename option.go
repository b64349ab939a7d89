package pulse

import (
	"time"

	"pkg.signalworks.dev/signal-engine/pulse/engine"
	"pkg.signalworks.dev/signal-engine/pulse/server"
)

// StreamOption represents an option that can be used to augment how the pulse.Stream will be run.
type StreamOption struct {
	engineOption Option
	serverOption server.Option
	streamOption func(*Stream)
}

// Option mirrors engine.Option so the facade can forward options without importing details.
type Option = engine.Option

// WithReceiptHistorySize specifies how many ticks worth of batch receipts should be kept in
// memory. The default is 10. A smaller number uses less memory.
func WithReceiptHistorySize(size int) StreamOption {
	return StreamOption{
		engineOption: engine.WithReceiptHistorySize(size),
	}
}

// WithPort specifies the port for the Stream's HTTP server. If omitted, the environment
// variable STREAM_PORT will be used, and if that is unset, port 4040 will be used.
func WithPort(port string) StreamOption {
	return StreamOption{
		serverOption: server.WithPort(port),
	}
}

// WithTickChannel sets the channel that will be used to decide when a tick is executed. If
// unset, the configured tick interval is used. To set some other time, use:
// WithTickChannel(time.Tick(<some-duration>)). Tests can pass in a channel controlled by the
// test for fine-grained control over when ticks are executed.
func WithTickChannel(ch <-chan time.Time) StreamOption {
	return StreamOption{
		streamOption: func(s *Stream) {
			s.tickChannel = ch
		},
	}
}

// WithTickDoneChannel sets a channel that will be notified each time a tick completes. The
// completed tick will be pushed to the channel. This option is useful in tests when assertions
// need to be performed at the end of a tick.
func WithTickDoneChannel(ch chan<- uint64) StreamOption {
	return StreamOption{
		streamOption: func(s *Stream) {
			s.tickDoneChannel = ch
		},
	}
}

func separateOptions(opts []StreamOption) (
	engineOptions []engine.Option,
	serverOptions []server.Option,
	streamOptions []func(*Stream),
) {
	for _, opt := range opts {
		if opt.engineOption != nil {
			engineOptions = append(engineOptions, opt.engineOption)
		}
		if opt.serverOption != nil {
			serverOptions = append(serverOptions, opt.serverOption)
		}
		if opt.streamOption != nil {
			streamOptions = append(streamOptions, opt.streamOption)
		}
	}
	return engineOptions, serverOptions, streamOptions
}
