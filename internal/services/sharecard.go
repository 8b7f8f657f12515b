package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/quoteshare/apiserver/internal/render"
	"github.com/quoteshare/apiserver/internal/storage"
	"github.com/quoteshare/apiserver/types"
)

const shareCardContentType = "image/png"

// QuoteGetter loads a single quote with attribution.
type QuoteGetter interface {
	Get(ctx context.Context, id int) (types.Quote, error)
}

// CardRenderer rasterises a card description into PNG bytes.
type CardRenderer interface {
	Render(card render.Card) ([]byte, error)
}

// glyphChecker is implemented by renderers that can report runes their fonts
// cannot draw.
type glyphChecker interface {
	MissingGlyphs(card render.Card) []rune
}

// ObjectStore is the subset of object storage used to cache share cards.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// ShareImage is a rendered share card.
type ShareImage struct {
	Data        []byte
	ContentType string
	// Hash is the hex SHA-256 of Data.
	Hash string
}

// ShareCardService renders quote share cards, caching them in object storage
// when one is configured.
type ShareCardService struct {
	quotes   QuoteGetter
	renderer CardRenderer
	cache    ObjectStore
	logger   *slog.Logger
}

// NewShareCardService builds the service. cache may be nil.
func NewShareCardService(quotes QuoteGetter, renderer CardRenderer, cache ObjectStore, logger *slog.Logger) *ShareCardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShareCardService{quotes: quotes, renderer: renderer, cache: cache, logger: logger}
}

// ShareCardKey is the object key a quote's card is cached under.
func ShareCardKey(quoteID int) string {
	return fmt.Sprintf("share-cards/%d.png", quoteID)
}

// Render returns the share card for a quote. Cache failures are logged and
// fall back to rendering.
func (s *ShareCardService) Render(ctx context.Context, quoteID int) (ShareImage, error) {
	if s.cache != nil {
		if data, ok := s.cached(ctx, quoteID); ok {
			return newShareImage(data), nil
		}
	}

	quote, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return ShareImage{}, err
	}

	card := CardForQuote(quote)
	if checker, ok := s.renderer.(glyphChecker); ok {
		if missing := checker.MissingGlyphs(card); len(missing) > 0 {
			s.logger.WarnContext(ctx, "share card font lacks glyphs, set SHARE_FONT_PATH",
				"quote_id", quoteID,
				"missing", len(missing),
				"sample", string(missing[:min(len(missing), 8)]),
			)
		}
	}

	data, err := s.renderer.Render(card)
	if err != nil {
		if errors.Is(err, render.ErrEmptyCard) {
			return ShareImage{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return ShareImage{}, fmt.Errorf("render share card: %w", err)
	}

	if s.cache != nil {
		key := ShareCardKey(quoteID)
		if err := s.cache.Put(ctx, key, bytes.NewReader(data), int64(len(data)), shareCardContentType); err != nil {
			s.logger.WarnContext(ctx, "cache share card failed", "key", key, "error", err)
		}
	}

	return newShareImage(data), nil
}

func (s *ShareCardService) cached(ctx context.Context, quoteID int) ([]byte, bool) {
	key := ShareCardKey(quoteID)
	reader, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.WarnContext(ctx, "read cached share card failed", "key", key, "error", err)
		}
		return nil, false
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		s.logger.WarnContext(ctx, "read cached share card failed", "key", key, "error", err)
		return nil, false
	}
	if !bytes.HasPrefix(data, pngSignature) {
		s.logger.WarnContext(ctx, "discarding corrupt cached share card", "key", key, "bytes", len(data))
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "delete cached share card failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// CardForQuote builds the card description for a quote using the default
// palette.
func CardForQuote(quote types.Quote) render.Card {
	return render.Card{
		Content:    quote.Content,
		Author:     quote.Author,
		Background: render.DefaultBackground,
		Foreground: render.DefaultForeground,
		Accent:     render.DefaultAccent,
	}
}

func newShareImage(data []byte) ShareImage {
	sum := sha256.Sum256(data)
	return ShareImage{
		Data:        data,
		ContentType: shareCardContentType,
		Hash:        hex.EncodeToString(sum[:]),
	}
}
