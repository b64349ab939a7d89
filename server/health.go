package server

import "github.com/gofiber/fiber/v2"

type HealthResponse struct {
	IsServerRunning   bool `json:"is_server_running"`
	IsTickLoopRunning bool `json:"is_tick_loop_running"`
}

func (s *Server) registerHealthHandler() {
	s.app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(HealthResponse{
			true, // see http://ismycomputeron.com/
			s.eng.IsTickLoopRunning(),
		})
	})
}
