package stream

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleProgress serves job progress as server-sent events. The first
// frame is a connection hello so clients can tell the pipe is open
// before any job data arrives.
func (h *Handler) HandleProgress(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.Context()
	ctx.SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		fmt.Fprint(w, "data: {\"connection\": \"established\"}\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		_ = h.service.Stream(ctx, jobID, func(ev Event) error {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			return w.Flush()
		})
	}))
	return nil
}
