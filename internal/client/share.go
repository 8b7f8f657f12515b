package client

import (
	"context"
	"fmt"
	"os"

	"github.com/quoteshare/apiserver/internal/render"
)

// CardRenderer rasterises a share card.
type CardRenderer interface {
	Render(card render.Card) ([]byte, error)
}

// RenderShareCard fetches a quote and renders its share card locally.
func (c *Client) RenderShareCard(ctx context.Context, id int, renderer CardRenderer) ([]byte, error) {
	quote, err := c.GetQuote(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := renderer.Render(render.Card{Content: quote.Content, Author: quote.Author})
	if err != nil {
		return nil, fmt.Errorf("render quote %d: %w", id, err)
	}
	return data, nil
}

// WriteImage stores PNG bytes at path.
func WriteImage(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
