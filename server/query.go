package server

import (
	"github.com/gofiber/fiber/v2"

	"pkg.signalworks.dev/signal-engine/pulse/ring"
)

// IndexRequest asks for the slot holding the sample closest to Timestamp.
type IndexRequest struct {
	Timestamp      float64 `json:"timestamp"`
	ErrorMargin    float64 `json:"errorMargin"`
	ToleranceScale float64 `json:"toleranceScale"`
}

// IndexReply reports the resolved slot. Available is false when the timestamp falls outside
// the retained window; that is a normal condition, not an HTTP error.
type IndexReply struct {
	Available bool `json:"available"`
	Index     int  `json:"index"`
	Wrapped   bool `json:"wrapped"`
}

// SegmentRequest asks for the samples spanning [Pivot+X, Pivot+Y]. When PivotIndex is non-nil
// the pivot is given as a slot index instead of a timestamp. When Window is non-nil the reply
// is the most recent Window seconds and the other fields are ignored.
type SegmentRequest struct {
	Pivot          float64  `json:"pivot"`
	PivotIndex     *int     `json:"pivotIndex,omitempty"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Window         *float64 `json:"window,omitempty"`
	ErrorMargin    float64  `json:"errorMargin"`
	ToleranceScale float64  `json:"toleranceScale"`
}

type SegmentReply struct {
	Available  bool        `json:"available"`
	Data       [][]float64 `json:"data,omitempty"`
	Timestamps []float64   `json:"timestamps,omitempty"`
}

func (s *Server) registerQueryHandlers() {
	s.app.Get("/query/stream/info", func(ctx *fiber.Ctx) error {
		return ctx.JSON(s.eng.StreamInfo())
	})

	s.app.Post("/query/stream/index", func(ctx *fiber.Ctx) error {
		req := new(IndexRequest)
		if err := ctx.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to decode index request: "+err.Error())
		}
		idx, wrapped := s.eng.FindIndex(req.Timestamp, req.ErrorMargin, req.ToleranceScale)
		return ctx.JSON(IndexReply{
			Available: idx != ring.NoIndex,
			Index:     idx,
			Wrapped:   wrapped,
		})
	})

	s.app.Post("/query/stream/segment", func(ctx *fiber.Ctx) error {
		req := new(SegmentRequest)
		if err := ctx.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to decode segment request: "+err.Error())
		}

		var seg ring.Segment
		var ok bool
		switch {
		case req.Window != nil:
			seg, ok = s.eng.GetWindow(*req.Window, req.ErrorMargin, req.ToleranceScale)
		case req.PivotIndex != nil:
			seg, ok = s.eng.GetSegmentAtIndex(*req.PivotIndex, req.X, req.Y, req.ErrorMargin, req.ToleranceScale)
		default:
			seg, ok = s.eng.GetSegment(req.Pivot, req.X, req.Y, req.ErrorMargin, req.ToleranceScale)
		}
		if !ok {
			return ctx.JSON(SegmentReply{Available: false})
		}
		return ctx.JSON(SegmentReply{
			Available:  true,
			Data:       seg.Data,
			Timestamps: seg.Timestamps,
		})
	})
}
