package dto

import (
	"net/mail"
	"strings"
	"time"

	"github.com/support-kit/ticket-triage/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Source        string  `json:"source"`
	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	Subject       string  `json:"subject"`
	Body          string  `json:"body"`
}

// Validate enforces the creation contract before the service sees the data:
// required fields present and non-blank, email syntactically valid when
// supplied. Returns a field->problem map, empty when valid.
func (r CreateTicketRequest) Validate() map[string]any {
	problems := map[string]any{}
	if strings.TrimSpace(r.Source) == "" {
		problems["source"] = "required"
	}
	if strings.TrimSpace(r.Subject) == "" {
		problems["subject"] = "required"
	}
	if strings.TrimSpace(r.Body) == "" {
		problems["body"] = "required"
	}
	if r.CustomerEmail != nil && *r.CustomerEmail != "" {
		if _, err := mail.ParseAddress(*r.CustomerEmail); err != nil {
			problems["customer_email"] = "invalid email address"
		}
	}
	return problems
}

// UpdateTicketRequest is a sparse patch; absent keys stay nil.
type UpdateTicketRequest struct {
	Status         *string `json:"status"`
	Priority       *string `json:"priority"`
	Category       *string `json:"category"`
	Summary        *string `json:"summary"`
	SuggestedReply *string `json:"suggested_reply"`
}

// Empty reports whether the patch carries no fields at all.
func (r UpdateTicketRequest) Empty() bool {
	return r.Status == nil && r.Priority == nil && r.Category == nil &&
		r.Summary == nil && r.SuggestedReply == nil
}

// TicketResponse is the full ticket record returned by every endpoint.
// Unset AI fields serialize as null, never as empty strings.
type TicketResponse struct {
	ID             int64                  `json:"id"`
	Source         string                 `json:"source"`
	CustomerName   *string                `json:"customer_name"`
	CustomerEmail  *string                `json:"customer_email"`
	Subject        string                 `json:"subject"`
	Body           string                 `json:"body"`
	Status         domain.TicketStatus    `json:"status"`
	Priority       *domain.TicketPriority `json:"priority"`
	Category       *domain.TicketCategory `json:"category"`
	Summary        *string                `json:"summary"`
	SuggestedReply *string                `json:"suggested_reply"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewTicketResponse maps the domain aggregate onto the wire shape.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		Source:         ticket.Source,
		CustomerName:   ticket.CustomerName,
		CustomerEmail:  ticket.CustomerEmail,
		Subject:        ticket.Subject,
		Body:           ticket.Body,
		Status:         ticket.Status,
		Priority:       ticket.Priority,
		Category:       ticket.Category,
		Summary:        ticket.Summary,
		SuggestedReply: ticket.SuggestedReply,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}
