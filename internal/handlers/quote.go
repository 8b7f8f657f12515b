package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quoteshare/apiserver/internal/services"
	"github.com/quoteshare/apiserver/types"
)

// QuoteBrowser is the quote surface used by QuoteHandler.
type QuoteBrowser interface {
	List(ctx context.Context, page, pageSize int) (types.QuotePage, error)
	Get(ctx context.Context, id int) (types.Quote, error)
	Create(ctx context.Context, identity *services.Identity, content, author string) (types.Quote, error)
}

// ShareCards renders a quote's share image.
type ShareCards interface {
	Render(ctx context.Context, quoteID int) (services.ShareImage, error)
}

// QuoteHandler provides HTTP handlers for quotes.
type QuoteHandler struct {
	quotes QuoteBrowser
	cards  ShareCards
	logger *slog.Logger
}

// NewQuoteHandler constructs a handler with the provided services.
func NewQuoteHandler(quotes QuoteBrowser, cards ShareCards, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, cards: cards, logger: loggerOrDefault(logger)}
}

// QuoteRouter registers quote routes on the given router.
func QuoteRouter(
	r chi.Router,
	quotes QuoteBrowser,
	cards ShareCards,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewQuoteHandler(quotes, cards, logger)

	r.Get("/", handler.ListQuotes)
	r.With(authMiddleware).Post("/", handler.CreateQuote)
	r.Route("/{quoteID}", func(r chi.Router) {
		r.Get("/", handler.GetQuote)
		r.Get("/share.png", handler.ShareImage)
	})
}

// ListQuotes returns one newest-first page of quotes.
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	page, pageSize, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.quotes.List(r.Context(), page, pageSize)
	if err != nil {
		writeServiceError(w, r, h.logger, resourceStatuses, err, "failed to fetch quotes")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateQuote stores a quote owned by the authenticated user.
func (h *QuoteHandler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateQuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	quote, err := h.quotes.Create(r.Context(), &identity, req.Content, req.Author)
	if err != nil {
		writeServiceError(w, r, h.logger, resourceStatuses, err, "failed to create quote")
		return
	}

	writeJSON(w, http.StatusOK, CreateQuoteResponse{
		ID:        quote.ID,
		Content:   quote.Content,
		Author:    quote.Author,
		UserID:    identity.ID,
		CreatedAt: quote.CreatedAt,
	})
}

// GetQuote returns a single quote with its attribution.
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuoteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quote, err := h.quotes.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, resourceStatuses, err, "failed to fetch quote")
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// ShareImage serves the quote's share card as PNG.
func (h *QuoteHandler) ShareImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseQuoteID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := h.cards.Render(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, resourceStatuses, err, "failed to render share image")
		return
	}

	etag := `"` + image.Hash + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(image.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="quote-%d.png"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image.Data)
}

// CreateQuoteRequest is the body of POST /quotes.
type CreateQuoteRequest struct {
	Content string `json:"content"`
	Author  string `json:"author"`
}

// CreateQuoteResponse echoes the stored quote with its owner.
type CreateQuoteResponse struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	UserID    int       `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// etagMatches applies the weak comparison If-None-Match uses: any listed tag
// equal to etag once its W/ prefix is dropped, or "*".
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == etag {
			return true
		}
	}
	return false
}

func parseQuoteID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "quoteID"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid quote id %q", raw)
	}
	return id, nil
}
