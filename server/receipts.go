package server

import (
	"github.com/gofiber/fiber/v2"
)

type ListReceiptsRequest struct {
	StartTick uint64 `json:"startTick"`
}

// ListReceiptsReply returns the batch receipts for the given range of ticks. The interval is
// closed on StartTick and open on EndTick: i.e. [StartTick, EndTick). To iterate over all
// ticks in the future, use the returned EndTick as the StartTick in the next request. If
// StartTick == EndTick, the receipts list will be empty.
type ListReceiptsReply struct {
	StartTick uint64         `json:"startTick"`
	EndTick   uint64         `json:"endTick"`
	Receipts  []BatchReceipt `json:"receipts"`
}

// BatchReceipt represents a single batch receipt. Errors are flattened to strings because
// json.Marshal does not extract the Error string from errors when marshalling.
type BatchReceipt struct {
	BatchID  string   `json:"batchId"`
	Samples  int      `json:"samples"`
	Wrapped  bool     `json:"wrapped"`
	Expanded bool     `json:"expanded"`
	Errors   []string `json:"errors"`
}

func errsToStringSlice(errs []error) []string {
	r := make([]string, 0, len(errs))
	for _, err := range errs {
		r = append(r, err.Error())
	}
	return r
}

func (s *Server) registerReceiptsHandler() {
	s.app.Post("/query/stream/receipts", func(ctx *fiber.Ctx) error {
		req := new(ListReceiptsRequest)
		if err := ctx.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "failed to decode receipts request: "+err.Error())
		}

		reply := ListReceiptsReply{Receipts: []BatchReceipt{}}
		reply.EndTick = s.eng.CurrentTick()
		size := s.eng.ReceiptHistorySize()
		if size > reply.EndTick {
			reply.StartTick = 0
		} else {
			reply.StartTick = reply.EndTick - size
		}
		// StartTick and EndTick are now at the largest possible range of ticks.
		// Check to see if we should narrow down the range at all.
		if req.StartTick > reply.EndTick {
			// Caller is asking for ticks in the future.
			reply.StartTick = reply.EndTick
		} else if req.StartTick > reply.StartTick {
			reply.StartTick = req.StartTick
		}

		for t := reply.StartTick; t < reply.EndTick; t++ {
			recs, err := s.eng.GetReceiptsForTick(t)
			if err != nil || len(recs) == 0 {
				continue
			}
			for _, rec := range recs {
				reply.Receipts = append(reply.Receipts, BatchReceipt{
					BatchID:  string(rec.BatchID),
					Samples:  rec.Samples,
					Wrapped:  rec.Wrapped,
					Expanded: rec.Expanded,
					Errors:   errsToStringSlice(rec.Errs),
				})
			}
		}

		return ctx.JSON(reply)
	})
}
