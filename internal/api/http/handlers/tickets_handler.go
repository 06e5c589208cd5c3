package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repair-desk/internal/api/dto"
	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/livesync"
	"github.com/spec-kit/repair-desk/internal/service"
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// TicketsHandler serves the ticket list and ticket writes. Writes go through
// the live cache so that list readers see them as pending until the
// subscription confirms them.
type TicketsHandler struct {
	cache       *livesync.Cache
	store       *service.TicketStore
	attachments *service.AttachmentService
	validator   *dto.Validator
	now         func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(cache *livesync.Cache, store *service.TicketStore, attachments *service.AttachmentService, validator *dto.Validator) *TicketsHandler {
	return &TicketsHandler{cache: cache, store: store, attachments: attachments, validator: validator, now: time.Now}
}

// ListTickets GET /tickets?q=&status=&technician=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validator.Struct(query); err != nil {
		return err
	}

	view := h.cache.View()
	view.Tickets = domain.FilterTickets(view.Tickets, query.Filter())
	return c.JSON(fiber.Map{"data": listResponse(view)})
}

// Summary GET /tickets/summary. Counts cover the whole list, unfiltered.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	view := h.cache.View()
	summary := domain.Summarize(view.Tickets, h.now())
	return c.JSON(fiber.Map{"data": dto.NewTicketSummaryResponse(string(view.State), view.Stale, summary)})
}

// GetTicket GET /tickets/:key.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.store.Ticket(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	ctx := c.UserContext()
	key, err := h.cache.AddTicket(ctx, req.Draft())
	if err != nil {
		return err
	}
	ticket, err := h.store.Ticket(ctx, key)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// UpdateTicket PATCH /tickets/:key.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	ctx := c.UserContext()
	key := c.Params("key")
	if err := h.cache.UpdateTicket(ctx, key, req.Patch()); err != nil {
		return err
	}
	ticket, err := h.store.Ticket(ctx, key)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(*ticket)})
}

// UploadPhoto POST /tickets/:key/photos (multipart field "photo").
func (h *TicketsHandler) UploadPhoto(c *fiber.Ctx) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return apperrors.NewValidationError("photo file required", nil)
	}
	f, err := file.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable photo", nil)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return apperrors.NewValidationError("unreadable photo", nil)
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}

	url, err := h.attachments.AddPhoto(c.UserContext(), c.Params("key"), data, contentType, nil)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.UploadResponse{URL: url}})
}

// SetSignature POST /tickets/:key/signature.
func (h *TicketsHandler) SetSignature(c *fiber.Ctx) error {
	var req dto.SignatureRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.validator.Struct(req); err != nil {
		return err
	}

	url, err := h.attachments.SetSignature(c.UserContext(), c.Params("key"), req.DataURL)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UploadResponse{URL: url}})
}

func listResponse(v livesync.View) dto.TicketListResponse {
	resp := dto.TicketListResponse{
		State:   string(v.State),
		Stale:   v.Stale,
		Seq:     v.Seq,
		Pending: v.Pending,
		Tickets: dto.NewTicketResponses(v.Tickets),
	}
	if v.StreamErr != nil {
		de := apperrors.ToDomainError(v.StreamErr)
		resp.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message}
	}
	return resp
}
