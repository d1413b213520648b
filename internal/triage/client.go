package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/support-kit/ticket-triage/internal/config"
	"github.com/support-kit/ticket-triage/internal/domain"
	"github.com/support-kit/ticket-triage/internal/observability"
)

// ErrMissingAPIKey signals absent provider credentials. This is operator
// misconfiguration, surfaced at construction time, never per request.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is missing")

// Result is the structured assessment produced for a ticket.
type Result struct {
	Priority       domain.TicketPriority
	Category       domain.TicketCategory
	Summary        string
	SuggestedReply string
}

// Client produces a best-effort structured assessment of a ticket.
type Client interface {
	Analyze(ctx context.Context, subject, body string) (*Result, error)
}

const (
	systemPrompt     = "You are a helpful customer support assistant. Return structured results."
	fallbackReminder = "Return ONLY a valid JSON object with keys: priority, category, summary, suggested_reply."
	schemaName       = "ticket_analysis"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenAIClient calls the chat completions API, preferring a strict
// json_schema response format and falling back to plain JSON mode once.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewOpenAIClient validates the credential and builds the client. The HTTP
// client carries a bounded timeout so a hung provider degrades into a triage
// failure instead of stalling ticket creation indefinitely.
func NewOpenAIClient(cfg config.OpenAIConfig, logger *zap.Logger, metrics *observability.Metrics) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Analyze requests a structured assessment for the given subject and body.
// The strict schema call guarantees shape; when the provider rejects it or
// returns garbage, one permissive JSON-mode call is attempted. Failure of
// both is returned to the caller, which is expected to degrade gracefully.
func (c *OpenAIClient) Analyze(ctx context.Context, subject, body string) (*Result, error) {
	messages := []chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Ticket subject: %s\nTicket body: %s", subject, body)},
	}

	content, err := c.complete(ctx, messages, strictResponseFormat())
	if err == nil {
		var result *Result
		if result, err = parseResult(content); err == nil {
			c.metrics.RecordTriage(observability.TriageOutcomeOK)
			return result, nil
		}
	}

	c.logger.Warn("strict schema triage call failed, retrying in JSON mode", zap.Error(err))

	fallbackMessages := append(messages, chatMessage{Role: "user", Content: fallbackReminder})
	content, err = c.complete(ctx, fallbackMessages, jsonResponseFormat())
	if err != nil {
		c.metrics.RecordTriage(observability.TriageOutcomeFailed)
		return nil, err
	}
	result, err := parseResult(content)
	if err != nil {
		c.metrics.RecordTriage(observability.TriageOutcomeFailed)
		return nil, err
	}
	c.metrics.RecordTriage(observability.TriageOutcomeFallback)
	return result, nil
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, responseFormat map[string]any) (string, error) {
	requestBody := map[string]any{
		"model":           c.model,
		"messages":        messages,
		"temperature":     0.2,
		"response_format": responseFormat,
	}
	payload, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai status=%d response=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty choices")
	}

	msg := parsed.Choices[0].Message
	if strings.TrimSpace(msg.Refusal) != "" {
		return "", fmt.Errorf("model refusal: %s", msg.Refusal)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return "", errors.New("empty content")
	}
	return msg.Content, nil
}

func strictResponseFormat() map[string]any {
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schemaName,
			"strict": true,
			"schema": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"priority": map[string]any{
						"type": "string",
						"enum": []string{"low", "medium", "high"},
					},
					"category": map[string]any{
						"type": "string",
						"enum": []string{"billing", "technical", "account", "other"},
					},
					"summary":         map[string]any{"type": "string"},
					"suggested_reply": map[string]any{"type": "string"},
				},
				"required": []string{"priority", "category", "summary", "suggested_reply"},
			},
		},
	}
}

func jsonResponseFormat() map[string]any {
	return map[string]any{"type": "json_object"}
}

// parseResult decodes and normalizes model output. Values outside the
// expected enums count as a failed call so the caller can fall back or
// degrade instead of persisting junk.
func parseResult(content string) (*Result, error) {
	var raw struct {
		Priority       string `json:"priority"`
		Category       string `json:"category"`
		Summary        string `json:"summary"`
		SuggestedReply string `json:"suggested_reply"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse triage content: %w", err)
	}

	priority := domain.TicketPriority(strings.ToLower(strings.TrimSpace(raw.Priority)))
	if !priority.Valid() {
		return nil, fmt.Errorf("unexpected priority %q", raw.Priority)
	}
	category := domain.TicketCategory(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !category.Valid() {
		return nil, fmt.Errorf("unexpected category %q", raw.Category)
	}

	return &Result{
		Priority:       priority,
		Category:       category,
		Summary:        strings.TrimSpace(raw.Summary),
		SuggestedReply: strings.TrimSpace(raw.SuggestedReply),
	}, nil
}
