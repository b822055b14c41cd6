package export

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleCSV(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	data, err := h.service.CSV(jobID)
	if err != nil {
		return exportError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=leads_%s.csv", jobID))
	return c.Send(data)
}

func (h *Handler) HandleJSON(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	data, err := h.service.JSON(jobID)
	if err != nil {
		return exportError(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=leads_%s.json", jobID))
	return c.Send(data)
}

func exportError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch err {
	case ErrNotFound:
		status = fiber.StatusNotFound
	case ErrNotReady:
		status = fiber.StatusConflict
	}
	return c.Status(status).JSON(fiber.Map{"success": false, "error": err.Error()})
}
