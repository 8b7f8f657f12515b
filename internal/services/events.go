package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quoteshare/apiserver/internal/mq"
	"github.com/quoteshare/apiserver/types"
)

const (
	// QuoteCreatedChannel is the queue/topic carrying QuoteEvent payloads.
	QuoteCreatedChannel = "quotes.created"

	quoteCreatedType = "quote.created"
)

// JSONPublisher publishes a JSON payload to a channel.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// EventPublisher announces created quotes on the message broker.
type EventPublisher struct {
	mq JSONPublisher
}

func NewEventPublisher(publisher JSONPublisher) *EventPublisher {
	return &EventPublisher{mq: publisher}
}

// QuoteCreated publishes a QuoteEvent for quote.
func (p *EventPublisher) QuoteCreated(ctx context.Context, quote types.Quote) error {
	event := types.QuoteEvent{
		QuoteID:   quote.ID,
		UserID:    quote.UserID,
		CreatedAt: quote.CreatedAt,
	}
	if _, err := p.mq.PublishJSON(ctx, QuoteCreatedChannel, event, map[string]string{"type": quoteCreatedType}); err != nil {
		return fmt.Errorf("publish quote %d: %w", quote.ID, err)
	}
	return nil
}

// ShareCardRenderer is implemented by ShareCardService.
type ShareCardRenderer interface {
	Render(ctx context.Context, quoteID int) (ShareImage, error)
}

// NewShareCardWarmer returns a message handler that pre-renders the share card
// of every created quote. Malformed events and quotes that no longer exist are
// acknowledged; any other failure is returned so the broker redelivers.
func NewShareCardWarmer(cards ShareCardRenderer, logger *slog.Logger) mq.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, msg mq.Message) error {
		var event types.QuoteEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.QuoteID < 1 {
			logger.WarnContext(ctx, "discarding malformed quote event", "message_id", msg.ID, "error", err)
			return nil
		}

		image, err := cards.Render(ctx, event.QuoteID)
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
				logger.WarnContext(ctx, "skipping share card", "quote_id", event.QuoteID, "error", err)
				return nil
			}
			logger.ErrorContext(ctx, "render share card failed", "quote_id", event.QuoteID, "error", err)
			return err
		}

		logger.InfoContext(ctx, "share card ready", "quote_id", event.QuoteID, "bytes", len(image.Data), "sha256", image.Hash)
		return nil
	}
}
