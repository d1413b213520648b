package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/support-kit/ticket-triage/internal/api/dto"
	"github.com/support-kit/ticket-triage/internal/domain"
	"github.com/support-kit/ticket-triage/internal/service"
	apperrors "github.com/support-kit/ticket-triage/pkg/util"
)

// TicketsHandler manages the ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if problems := req.Validate(); len(problems) > 0 {
		return apperrors.NewValidationError("invalid ticket input", problems)
	}

	ticket, err := h.service.Create(c.UserContext(), service.TicketCreateInput{
		Source:        req.Source,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Subject:       req.Subject,
		Body:          req.Body,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i]))
	}
	return c.JSON(items)
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Empty() {
		return apperrors.NewBadRequest("no fields provided to update")
	}

	patch := service.TicketUpdateInput{
		Summary:        req.Summary,
		SuggestedReply: req.SuggestedReply,
	}
	if req.Status != nil {
		status := domain.TicketStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TicketPriority(*req.Priority)
		patch.Priority = &priority
	}
	if req.Category != nil {
		category := domain.TicketCategory(*req.Category)
		patch.Category = &category
	}

	ticket, err := h.service.Update(c.UserContext(), id, patch)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

func parseListQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{Limit: 20, Offset: 0}

	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.TicketStatus(statusStr)
		filter.Status = &status
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 100 {
			return filter, apperrors.NewValidationError("limit must be an integer in [1,100]", map[string]any{"limit": limitStr})
		}
		filter.Limit = limit
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, apperrors.NewValidationError("offset must be a non-negative integer", map[string]any{"offset": offsetStr})
		}
		filter.Offset = offset
	}
	return filter, nil
}
