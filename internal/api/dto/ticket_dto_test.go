package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/support-kit/ticket-triage/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestCreateTicketRequestValidate(t *testing.T) {
	valid := CreateTicketRequest{Source: "web", Subject: "s", Body: "b"}
	assert.Empty(t, valid.Validate())

	withEmail := CreateTicketRequest{Source: "zapier", Subject: "s", Body: "b", CustomerEmail: strPtr("ada@example.com")}
	assert.Empty(t, withEmail.Validate())

	problems := CreateTicketRequest{Source: " ", Subject: "", Body: "b", CustomerEmail: strPtr("nope")}.Validate()
	assert.Contains(t, problems, "source")
	assert.Contains(t, problems, "subject")
	assert.Contains(t, problems, "customer_email")
	assert.NotContains(t, problems, "body")
}

func TestUpdateTicketRequestEmpty(t *testing.T) {
	assert.True(t, UpdateTicketRequest{}.Empty())
	assert.False(t, UpdateTicketRequest{Summary: strPtr("s")}.Empty())
}

func TestTicketResponseSerializesNullAIFields(t *testing.T) {
	now := time.Now().UTC()
	resp := NewTicketResponse(&domain.Ticket{
		ID:        7,
		Source:    "web",
		Subject:   "s",
		Body:      "b",
		Status:    domain.TicketStatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	})

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"priority", "category", "summary", "suggested_reply", "customer_name", "customer_email"} {
		val, present := decoded[key]
		assert.True(t, present, "key %q should be emitted", key)
		assert.Nil(t, val, "key %q should be null", key)
	}
	assert.Equal(t, "new", decoded["status"])
}
