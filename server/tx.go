package server

import (
	"github.com/gofiber/fiber/v2"
)

// IngestRequest carries one channel-major batch of samples. Data[c][i] is the i-th sample of
// channel c, stamped Timestamps[i]. Expand asks the store to grow instead of evict if the
// batch outruns it while the stream is still filling.
type IngestRequest struct {
	Data       [][]float64 `json:"data"`
	Timestamps []float64   `json:"timestamps"`
	Expand     bool        `json:"expand"`
}

// IngestReply reports the tick the batch will be ingested on and the ID its receipt will be
// filed under.
type IngestReply struct {
	BatchID string `json:"batchId"`
	Tick    uint64 `json:"tick"`
}

func (s *Server) registerIngestHandler() {
	s.app.Post("/tx/stream/ingest", func(ctx *fiber.Ctx) error {
		if len(ctx.Body()) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "request body was empty")
		}
		req := new(IngestRequest)
		if err := ctx.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to decode ingest request: "+err.Error())
		}
		if len(req.Timestamps) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "batch must hold at least one sample")
		}

		add := s.eng.AddBatch
		if req.Expand {
			add = s.eng.AddExpandBatch
		}
		tick, id := add(req.Data, req.Timestamps)
		return ctx.JSON(IngestReply{BatchID: string(id), Tick: tick})
	})
}
