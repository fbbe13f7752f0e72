package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

var errMissingGatewayURL = errors.New("gateway url is required")

// GatewayError reports that the push gateway rejected a submission outright.
type GatewayError struct {
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("push gateway: %s", e.Message)
}

// ClientConfig configures the HTTP client for the push gateway.
type ClientConfig struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client submits push messages to the gateway's single POST endpoint.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a gateway client with an explicit request timeout.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errMissingGatewayURL
	}

	// Work on a copy so a shared client passed by the caller is never mutated.
	httpClient := &http.Client{}
	if cfg.HTTPClient != nil {
		clientCopy := *cfg.HTTPClient
		httpClient = &clientCopy
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type gatewayEnvelope struct {
	Data   json.RawMessage   `json:"data"`
	Errors []gatewayAPIError `json:"errors"`
}

type gatewayAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Send submits the messages in one POST and returns the per-message tickets in
// submission order. The gateway's wire format depends on cardinality: a single
// message is sent as a bare object, two or more as an array, and the response
// data mirrors the request shape.
func (c *Client) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	var payload any = messages
	if len(messages) == 1 {
		payload = messages[0]
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode gateway request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer response.Body.Close() //nolint:errcheck

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("gateway returned error status",
			zap.Int("status", response.StatusCode),
			zap.Int("messages", len(messages)))
		return nil, &GatewayError{Message: fmt.Sprintf("unexpected status %d", response.StatusCode)}
	}

	var envelope gatewayEnvelope
	if err := json.Unmarshal(responseBody, &envelope); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return nil, &GatewayError{Message: envelope.Errors[0].Message}
	}

	tickets, err := decodeTickets(envelope.Data)
	if err != nil {
		return nil, err
	}

	// A single error ticket answering a multi-message submission means the
	// gateway rejected the batch as a whole, not one recipient.
	if len(messages) > 1 && len(tickets) == 1 && tickets[0].Status == TicketStatusError {
		return nil, &GatewayError{Message: tickets[0].Message}
	}
	return tickets, nil
}

func decodeTickets(data json.RawMessage) ([]Ticket, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var tickets []Ticket
		if err := json.Unmarshal(trimmed, &tickets); err != nil {
			return nil, fmt.Errorf("decode gateway tickets: %w", err)
		}
		return tickets, nil
	}
	var ticket Ticket
	if err := json.Unmarshal(trimmed, &ticket); err != nil {
		return nil, fmt.Errorf("decode gateway ticket: %w", err)
	}
	return []Ticket{ticket}, nil
}
