package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/quoteshare/apiserver/internal/store"
	"github.com/quoteshare/apiserver/types"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// QuoteRepository defines persistence operations for quotes.
type QuoteRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Quote, int, error)
	Get(ctx context.Context, id int) (types.Quote, error)
	Create(ctx context.Context, quote types.Quote) (types.Quote, error)
	Count(ctx context.Context) (int, error)
}

// QuotePublisher announces newly created quotes.
type QuotePublisher interface {
	QuoteCreated(ctx context.Context, quote types.Quote) error
}

// QuoteService encapsulates quote listing and contribution.
type QuoteService struct {
	repo      QuoteRepository
	publisher QuotePublisher
	logger    *slog.Logger
}

func NewQuoteService(repo QuoteRepository, publisher QuotePublisher, logger *slog.Logger) *QuoteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteService{repo: repo, publisher: publisher, logger: logger}
}

// NormalizePage applies the listing defaults: page below 1 becomes 1, page
// size below 1 becomes DefaultPageSize and is capped at MaxPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// List returns one newest-first page. A page past the end yields an empty
// slice with the full total.
func (s *QuoteService) List(ctx context.Context, page, pageSize int) (types.QuotePage, error) {
	page, pageSize = NormalizePage(page, pageSize)

	var (
		quotes []types.Quote
		total  int
		err    error
	)
	if page-1 > (math.MaxInt-1)/pageSize {
		// The offset would overflow; no store holds that many rows.
		total, err = s.repo.Count(ctx)
	} else {
		quotes, total, err = s.repo.List(ctx, (page-1)*pageSize, pageSize)
	}
	if err != nil {
		return types.QuotePage{}, fmt.Errorf("list quotes: %w", err)
	}
	if quotes == nil {
		quotes = []types.Quote{}
	}

	return types.QuotePage{
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		Quotes:     quotes,
	}, nil
}

func (s *QuoteService) Get(ctx context.Context, id int) (types.Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Quote{}, fmt.Errorf("%w: quote %d does not exist", ErrNotFound, id)
		}
		return types.Quote{}, fmt.Errorf("get quote: %w", err)
	}
	return quote, nil
}

// Create stores a quote owned by the authenticated identity. The identity is
// trusted as verified by the token; the user row is not re-checked.
func (s *QuoteService) Create(ctx context.Context, identity *Identity, content, author string) (types.Quote, error) {
	if identity == nil || identity.ID < 1 {
		return types.Quote{}, fmt.Errorf("%w: missing identity", ErrAuth)
	}

	content, author = strings.TrimSpace(content), strings.TrimSpace(author)
	if content == "" || author == "" {
		return types.Quote{}, fmt.Errorf("%w: content and author are required", ErrValidation)
	}

	userID := identity.ID
	created, err := s.repo.Create(ctx, types.Quote{
		Content: content,
		Author:  author,
		UserID:  &userID,
	})
	if err != nil {
		return types.Quote{}, fmt.Errorf("create quote: %w", err)
	}
	username := identity.Username
	created.AddedBy = &username

	if s.publisher != nil {
		if err := s.publisher.QuoteCreated(ctx, created); err != nil {
			s.logger.WarnContext(ctx, "publish quote event failed", "quote_id", created.ID, "error", err)
		}
	}

	return created, nil
}

// Seed inserts quotes without a contributor, in the given order.
func (s *QuoteService) Seed(ctx context.Context, quotes []types.Quote) (int, error) {
	inserted := 0
	for _, q := range quotes {
		content, author := strings.TrimSpace(q.Content), strings.TrimSpace(q.Author)
		if content == "" || author == "" {
			return inserted, fmt.Errorf("%w: seed quote %d is incomplete", ErrValidation, inserted)
		}
		if _, err := s.repo.Create(ctx, types.Quote{Content: content, Author: author}); err != nil {
			return inserted, fmt.Errorf("seed quote: %w", err)
		}
		inserted++
	}
	return inserted, nil
}
