package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/support-kit/ticket-triage/internal/domain"
	"github.com/support-kit/ticket-triage/internal/events"
	"github.com/support-kit/ticket-triage/internal/repository"
	"github.com/support-kit/ticket-triage/internal/triage"
	apperrors "github.com/support-kit/ticket-triage/pkg/util"
)

// fakeTicketRepo mimics the store: ids assigned on insert, timestamps set on
// insert, updated_at advanced on every update.
type fakeTicketRepo struct {
	nextID      int64
	tickets     map[int64]*domain.Ticket
	updateCalls int
	listFilter  repository.TicketFilter
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{nextID: 1, tickets: map[int64]*domain.Ticket{}}
}

func (f *fakeTicketRepo) Insert(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = f.nextID
	f.nextID++
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusNew
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := *ticket
	f.tickets[ticket.ID] = &stored
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (f *fakeTicketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.listFilter = filter
	var result []domain.Ticket
	for _, ticket := range f.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		result = append(result, *ticket)
	}
	return result, nil
}

func (f *fakeTicketRepo) UpdateFields(_ context.Context, id int64, fields map[string]any) (*domain.Ticket, error) {
	f.updateCalls++
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	for name, value := range fields {
		switch name {
		case "status":
			status := value.(domain.TicketStatus)
			ticket.Status = status
		case "priority":
			priority := value.(domain.TicketPriority)
			ticket.Priority = &priority
		case "category":
			category := value.(domain.TicketCategory)
			ticket.Category = &category
		case "summary":
			summary := value.(string)
			ticket.Summary = &summary
		case "suggested_reply":
			reply := value.(string)
			ticket.SuggestedReply = &reply
		}
	}
	ticket.UpdatedAt = ticket.UpdatedAt.Add(time.Second)
	copied := *ticket
	return &copied, nil
}

type fakeTriageClient struct {
	result *triage.Result
	err    error
	calls  int
}

func (f *fakeTriageClient) Analyze(_ context.Context, _, _ string) (*triage.Result, error) {
	f.calls++
	return f.result, f.err
}

func newService(repo *fakeTicketRepo, client *fakeTriageClient) (*TicketService, *[]events.Event) {
	dispatcher := events.NewInMemoryDispatcher()
	published := &[]events.Event{}
	record := func(_ context.Context, event events.Event) error {
		*published = append(*published, event)
		return nil
	}
	dispatcher.Subscribe(events.EventTicketCreated, record)
	dispatcher.Subscribe(events.EventTicketTriaged, record)
	dispatcher.Subscribe(events.EventTicketUpdated, record)

	svc := NewTicketService(TicketDependencies{
		TicketRepo:   repo,
		TriageClient: client,
		Dispatcher:   dispatcher,
		Logger:       zap.NewNop(),
	})
	return svc, published
}

func strPtr(s string) *string { return &s }

func TestCreateWithTriageSuccess(t *testing.T) {
	repo := newFakeTicketRepo()
	client := &fakeTriageClient{result: &triage.Result{
		Priority:       domain.TicketPriorityHigh,
		Category:       domain.TicketCategoryBilling,
		Summary:        "Customer wants a refund",
		SuggestedReply: "We will process the refund shortly.",
	}}
	svc, published := newService(repo, client)

	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Source:        "web",
		CustomerName:  strPtr("Ada"),
		CustomerEmail: strPtr("ada@example.com"),
		Subject:       "Refund please",
		Body:          "I was double charged.",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), ticket.ID)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, ticket.CreatedAt, ticket.UpdatedAt)
	require.NotNil(t, ticket.Priority)
	assert.Equal(t, domain.TicketPriorityHigh, *ticket.Priority)
	require.NotNil(t, ticket.Category)
	assert.Equal(t, domain.TicketCategoryBilling, *ticket.Category)
	require.NotNil(t, ticket.Summary)
	assert.Equal(t, "Customer wants a refund", *ticket.Summary)

	// round-trip: the stored record matches what create returned
	stored, err := svc.Get(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.Subject, stored.Subject)
	assert.Equal(t, ticket.Body, stored.Body)
	assert.Equal(t, *ticket.CustomerEmail, *stored.CustomerEmail)

	require.Len(t, *published, 2)
	assert.Equal(t, events.EventTicketCreated, (*published)[0].Type)
	assert.Equal(t, events.EventTicketTriaged, (*published)[1].Type)
}

func TestCreateDegradesWhenTriageFails(t *testing.T) {
	repo := newFakeTicketRepo()
	client := &fakeTriageClient{err: errors.New("provider unavailable")}
	svc, published := newService(repo, client)

	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Source:  "email",
		Subject: "Cannot log in",
		Body:    "Password reset loops forever.",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Nil(t, ticket.Priority)
	assert.Nil(t, ticket.Category)
	assert.Nil(t, ticket.Summary)
	assert.Nil(t, ticket.SuggestedReply)
	assert.Equal(t, 1, client.calls)

	require.Len(t, *published, 1)
	assert.Equal(t, events.EventTicketCreated, (*published)[0].Type)
	payload := (*published)[0].Payload.(events.TicketCreatedPayload)
	assert.False(t, payload.Triaged)
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newService(newFakeTicketRepo(), &fakeTriageClient{})

	_, err := svc.Get(context.Background(), 99)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestListClampsLimitAndOffset(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newService(repo, &fakeTriageClient{})

	_, err := svc.List(context.Background(), TicketListFilter{Limit: 500, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 100, repo.listFilter.Limit)
	assert.Equal(t, 0, repo.listFilter.Offset)

	_, err = svc.List(context.Background(), TicketListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 20, repo.listFilter.Limit)
}

func TestListReturnsEmptySliceNotNil(t *testing.T) {
	svc, _ := newService(newFakeTicketRepo(), &fakeTriageClient{})

	tickets, err := svc.List(context.Background(), TicketListFilter{})
	require.NoError(t, err)
	assert.NotNil(t, tickets)
	assert.Empty(t, tickets)
}

func TestListPassesStatusFilter(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newService(repo, &fakeTriageClient{err: errors.New("down")})

	_, err := svc.Create(context.Background(), TicketCreateInput{Source: "web", Subject: "a", Body: "b"})
	require.NoError(t, err)

	status := domain.TicketStatusNew
	tickets, err := svc.List(context.Background(), TicketListFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	resolved := domain.TicketStatusResolved
	tickets, err = svc.List(context.Background(), TicketListFilter{Status: &resolved})
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestUpdateEmptyPatchRejectedBeforeStorage(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newService(repo, &fakeTriageClient{})

	_, err := svc.Update(context.Background(), 1, TicketUpdateInput{})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "BAD_REQUEST", domainErr.Code)
	assert.Equal(t, 0, repo.updateCalls)
}

func TestUpdateInvalidEnumRejectedBeforeStorage(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newService(repo, &fakeTriageClient{err: errors.New("down")})

	_, err := svc.Create(context.Background(), TicketCreateInput{Source: "web", Subject: "a", Body: "b"})
	require.NoError(t, err)

	badPriority := domain.TicketPriority("urgent")
	_, err = svc.Update(context.Background(), 1, TicketUpdateInput{Priority: &badPriority})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
	assert.Equal(t, 0, repo.updateCalls)

	stored, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, stored.Priority)
}

func TestUpdateSingleFieldAdvancesUpdatedAt(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, published := newService(repo, &fakeTriageClient{err: errors.New("down")})

	created, err := svc.Create(context.Background(), TicketCreateInput{Source: "web", Subject: "a", Body: "b"})
	require.NoError(t, err)

	status := domain.TicketStatusResolved
	updated, err := svc.Update(context.Background(), created.ID, TicketUpdateInput{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.Subject, updated.Subject)
	assert.Nil(t, updated.Priority)

	last := (*published)[len(*published)-1]
	assert.Equal(t, events.EventTicketUpdated, last.Type)
	payload := last.Payload.(events.TicketUpdatedPayload)
	assert.Equal(t, []string{"status"}, payload.Fields)
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newService(newFakeTicketRepo(), &fakeTriageClient{})

	status := domain.TicketStatusClosed
	_, err := svc.Update(context.Background(), 42, TicketUpdateInput{Status: &status})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}
