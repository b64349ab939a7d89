package main

import (
	"github.com/rs/zerolog/log"

	"pkg.signalworks.dev/signal-engine/pulse"
)

func main() {
	stream, err := pulse.NewStream()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stream")
	}
	if err := stream.StartStream(); err != nil {
		log.Fatal().Err(err).Msg("stream stopped")
	}
}
