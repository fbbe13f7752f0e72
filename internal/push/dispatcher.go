package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrTitleAndMessageRequired is returned when a broadcast omits its title or body.
	ErrTitleAndMessageRequired = errors.New("Title and message are required")

	errMissingTokenSource = errors.New("token source is required")
	errMissingGateway     = errors.New("gateway sender is required")
)

// TokenSource supplies the push tokens of every registered device.
type TokenSource interface {
	Tokens(ctx context.Context) ([]string, error)
}

// Sender submits built messages to the push gateway.
type Sender interface {
	Send(ctx context.Context, messages []Message) ([]Ticket, error)
}

// DispatcherConfig describes the collaborators of the broadcast dispatcher.
type DispatcherConfig struct {
	Tokens  TokenSource
	Gateway Sender
	Logger  *zap.Logger
}

// Dispatcher fans a title/body payload out to every registered device.
type Dispatcher struct {
	tokens  TokenSource
	gateway Sender
	logger  *zap.Logger
}

// NewDispatcher constructs the broadcast dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Tokens == nil {
		return nil, errMissingTokenSource
	}
	if cfg.Gateway == nil {
		return nil, errMissingGateway
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tokens:  cfg.Tokens,
		gateway: cfg.Gateway,
		logger:  logger,
	}, nil
}

// Receipt is the delivery outcome for one device token.
type Receipt struct {
	Token   string `json:"token"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// Result aggregates a broadcast's per-token receipts.
type Result struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Receipts []Receipt `json:"receipts,omitempty"`
}

// Dispatch broadcasts one notification to every registered device and returns a
// per-token receipt list. A broadcast with no registered devices is a no-op
// success, never a gateway call.
func (d *Dispatcher) Dispatch(ctx context.Context, title, message string, data map[string]any) (Result, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return Result{}, ErrTitleAndMessageRequired
	}

	tokens, err := d.tokens.Tokens(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch tokens: %w", err)
	}
	if len(tokens) == 0 {
		d.logger.Info("broadcast skipped, no registered devices")
		return Result{}, nil
	}

	messages := make([]Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, Message{
			To:    token,
			Title: title,
			Body:  message,
			Data:  data,
			Sound: defaultSound,
		})
	}

	tickets, err := d.gateway.Send(ctx, messages)
	if err != nil {
		d.logger.Error("broadcast submission failed", zap.Int("messages", len(messages)), zap.Error(err))
		return Result{}, err
	}

	if len(tickets) < len(messages) {
		d.logger.Warn("gateway returned fewer tickets than messages",
			zap.Int("messages", len(messages)),
			zap.Int("tickets", len(tickets)))
	}

	result := Result{Receipts: make([]Receipt, 0, len(messages))}
	for index, built := range messages {
		receipt := Receipt{Token: built.To}
		switch {
		case index >= len(tickets):
			// No ticket covers this message; delivery is unknown, not confirmed.
			receipt.Message = "no delivery ticket returned"
		case tickets[index].Status == TicketStatusError:
			receipt.Message = tickets[index].Message
		default:
			receipt.OK = true
		}
		if receipt.OK {
			result.Sent++
		} else {
			result.Failed++
		}
		result.Receipts = append(result.Receipts, receipt)
	}

	if result.Failed > 0 {
		d.logger.Warn("broadcast partially failed",
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed))
	} else {
		d.logger.Info("broadcast delivered", zap.Int("sent", result.Sent))
	}
	return result, nil
}
