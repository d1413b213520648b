package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "new"
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusClosed   TicketStatus = "closed"
)

// Valid reports whether the status is a known lifecycle state.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates triage urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether the priority is a known value.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// TicketCategory enumerates triage classification buckets.
type TicketCategory string

const (
	TicketCategoryBilling   TicketCategory = "billing"
	TicketCategoryTechnical TicketCategory = "technical"
	TicketCategoryAccount   TicketCategory = "account"
	TicketCategoryOther     TicketCategory = "other"
)

// Valid reports whether the category is a known value.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryBilling, TicketCategoryTechnical, TicketCategoryAccount, TicketCategoryOther:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests plus AI-derived triage
// metadata. AI fields are nil until triage succeeds; a ticket with all of
// them nil is a valid persisted record.
type Ticket struct {
	ID             int64
	Source         string
	CustomerName   *string
	CustomerEmail  *string
	Subject        string
	Body           string
	Status         TicketStatus
	Priority       *TicketPriority
	Category       *TicketCategory
	Summary        *string
	SuggestedReply *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
