package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/support-kit/ticket-triage/internal/domain"
	"github.com/support-kit/ticket-triage/internal/events"
	"github.com/support-kit/ticket-triage/internal/repository"
	"github.com/support-kit/ticket-triage/internal/triage"
	apperrors "github.com/support-kit/ticket-triage/pkg/util"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TicketService coordinates the ticket lifecycle. It is the only component
// aware of both the store and the triage client.
type TicketService struct {
	tickets    repository.TicketRepository
	triage     triage.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo   repository.TicketRepository
	TriageClient triage.Client
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// TicketCreateInput describes ticket creation payload. Fields are assumed
// pre-validated by the DTO layer.
type TicketCreateInput struct {
	Source        string
	CustomerName  *string
	CustomerEmail *string
	Subject       string
	Body          string
}

// TicketListFilter describes listing parameters.
type TicketListFilter struct {
	Status *domain.TicketStatus
	Limit  int
	Offset int
}

// TicketUpdateInput is a sparse patch; nil fields are left untouched.
type TicketUpdateInput struct {
	Status         *domain.TicketStatus
	Priority       *domain.TicketPriority
	Category       *domain.TicketCategory
	Summary        *string
	SuggestedReply *string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		triage:     deps.TriageClient,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// Create runs triage and persists the ticket. Triage is best-effort: any
// failure is logged and the ticket is stored with nil AI fields. The row is
// written only after triage settles, so no partial state is ever persisted.
func (s *TicketService) Create(ctx context.Context, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Source:        input.Source,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		Subject:       input.Subject,
		Body:          input.Body,
		Status:        domain.TicketStatusNew,
	}

	result, err := s.triage.Analyze(ctx, input.Subject, input.Body)
	if err != nil {
		s.logger.Warn("triage failed, storing ticket without analysis", zap.Error(err))
	} else {
		priority := result.Priority
		category := result.Category
		ticket.Priority = &priority
		ticket.Category = &category
		if result.Summary != "" {
			summary := result.Summary
			ticket.Summary = &summary
		}
		if result.SuggestedReply != "" {
			reply := result.SuggestedReply
			ticket.SuggestedReply = &reply
		}
	}

	if err := s.tickets.Insert(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Payload: events.TicketCreatedPayload{
			Source:  ticket.Source,
			Subject: ticket.Subject,
			Status:  ticket.Status,
			Triaged: result != nil,
		},
	})
	if result != nil {
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketTriaged,
			TicketID: ticket.ID,
			Payload: events.TicketTriagedPayload{
				Priority: result.Priority,
				Category: result.Category,
			},
		})
	}

	return ticket, nil
}

// Get fetches a ticket by id.
func (s *TicketService) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}
	return ticket, nil
}

// List returns tickets newest first, optionally filtered by status. Limit is
// clamped to [1,100] with a default of 20; offset is floored at zero.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	tickets, err := s.tickets.List(ctx, repository.TicketFilter{
		Status: filter.Status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

// Update applies a sparse patch. An empty patch is rejected before touching
// storage, as is any enum value outside its allowed set.
func (s *TicketService) Update(ctx context.Context, id int64, patch TicketUpdateInput) (*domain.Ticket, error) {
	fields, err := patchFields(patch)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, apperrors.NewBadRequest("no fields provided to update")
	}

	ticket, err := s.tickets.UpdateFields(ctx, id, fields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, err
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: ticket.ID,
		Payload:  events.TicketUpdatedPayload{Fields: names},
	})

	return ticket, nil
}

func patchFields(patch TicketUpdateInput) (map[string]any, error) {
	fields := map[string]any{}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": *patch.Status})
		}
		fields["status"] = *patch.Status
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": *patch.Priority})
		}
		fields["priority"] = *patch.Priority
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, apperrors.NewValidationError("invalid category", map[string]any{"category": *patch.Category})
		}
		fields["category"] = *patch.Category
	}
	if patch.Summary != nil {
		fields["summary"] = *patch.Summary
	}
	if patch.SuggestedReply != nil {
		fields["suggested_reply"] = *patch.SuggestedReply
	}
	return fields, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	_ = s.dispatcher.Publish(ctx, event)
}
