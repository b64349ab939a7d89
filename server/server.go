package server

import (
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"

	"pkg.signalworks.dev/signal-engine/pulse/engine"
)

const (
	defaultPort = "4040"
)

// Server exposes a stream engine over HTTP: batch ingestion, index and segment queries, batch
// receipts, and a websocket feed of stream events.
type Server struct {
	eng *engine.Engine
	app *fiber.App

	port string

	running       atomic.Bool
	shutdownMutex sync.Mutex
}

func New(eng *engine.Engine, opts ...Option) (*Server, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
	s := &Server{
		eng:  eng,
		app:  app,
		port: defaultPort,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerHealthHandler()
	s.registerQueryHandlers()
	s.registerIngestHandler()
	s.registerReceiptsHandler()
	s.registerEventsHandler("/events")

	return s, nil
}

// App exposes the underlying fiber app so tests can drive handlers without binding a port.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve blocks serving HTTP until Shutdown is called.
func (s *Server) Serve() error {
	s.running.Store(true)
	err := s.app.Listen(":" + s.port)
	s.running.Store(false)
	if err != nil {
		return eris.Wrap(err, "")
	}
	return nil
}

func (s *Server) IsRunning() bool {
	return s.running.Load()
}

func (s *Server) Shutdown() error {
	s.shutdownMutex.Lock() // This queues up Shutdown calls so they happen one after the other.
	defer s.shutdownMutex.Unlock()
	if !s.running.Load() {
		return nil
	}
	log.Info().Msg("Shutting down server.")
	if err := s.app.Shutdown(); err != nil {
		return eris.Wrap(err, "")
	}
	log.Info().Msg("Successfully shut down server.")
	return nil
}
