package scrape

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"leadscraper/internal/core/lead"
)

type Handler struct {
	service  *Service
	store    *Store
	validate *validator.Validate
}

func NewHandler(service *Service, store *Store) *Handler {
	return &Handler{service: service, store: store, validate: validator.New()}
}

// HandleSubmit accepts a scrape request, validates it and returns the
// job id right away; the scrape itself runs in the background.
func (h *Handler) HandleSubmit(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return badRequest(c, validationMessage(err))
	}

	id, err := h.service.Submit(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusAccepted).JSON(SubmitResponse{
		Success: true,
		JobID:   id,
		Status:  StatusPending,
		Message: "Scraping job started",
	})
}

// HandleStatus returns a point-in-time snapshot of a job. Records are
// only included once the job has completed.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	id := c.Params("jobId")
	job, ok := h.store.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Success: false, Error: "job not found"})
	}

	resp := StatusResponse{
		Success:          true,
		JobID:            job.ID,
		Status:           job.Status,
		Percentage:       job.Percent,
		Message:          job.Message,
		ScrapedCount:     job.ScrapedCount,
		SourcesProcessed: job.SourcesProcessed,
		TotalSources:     len(job.Sources),
		ErrorCount:       job.ErrorCount,
		AttemptCount:     job.AttemptCount,
	}
	if job.Status == StatusCompleted {
		resp.Data = job.Records
		resp.TotalCount = len(job.Records)
	}
	return c.JSON(resp)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Success: false, Error: msg})
}

// validationMessage flattens validator errors into something a caller
// can act on without knowing the struct tags.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Sources":
			msgs = append(msgs, "urls must contain between 1 and 10 valid URLs")
		case "LeadCount":
			msgs = append(msgs, "lead_count must be between 1 and 50000")
		case "Fields":
			msgs = append(msgs, fmt.Sprintf("fields may name at most %d fields", len(lead.KnownFields)))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}
