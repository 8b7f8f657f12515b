package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/quoteshare/apiserver/types"
)

// QuoteRepository handles persistence for quotes.
type QuoteRepository struct {
	db *sql.DB
}

func NewQuoteRepository(db *sql.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// List returns a newest-first page of quotes with contributor usernames and
// the total number of quotes.
func (r *QuoteRepository) List(ctx context.Context, offset, limit int) ([]types.Quote, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 10
	}

	const countQuery = `SELECT COUNT(1) FROM quotes`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT q.id, q.content, q.author, q.user_id, u.username, q.created_at
		FROM quotes q
		LEFT JOIN users u ON q.user_id = u.id
		ORDER BY q.created_at DESC, q.id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotes := make([]types.Quote, 0, limit)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, quote)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return quotes, total, nil
}

func (r *QuoteRepository) Get(ctx context.Context, id int) (types.Quote, error) {
	const query = `
		SELECT q.id, q.content, q.author, q.user_id, u.username, q.created_at
		FROM quotes q
		LEFT JOIN users u ON q.user_id = u.id
		WHERE q.id = $1`
	quote, err := scanQuote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Quote{}, ErrNotFound
		}
		return types.Quote{}, err
	}
	return quote, nil
}

// Create inserts a quote. CreatedAt is assigned by the database.
func (r *QuoteRepository) Create(ctx context.Context, quote types.Quote) (types.Quote, error) {
	var userID sql.NullInt64
	if quote.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*quote.UserID), Valid: true}
	}

	const query = `
		INSERT INTO quotes (content, author, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		quote.Content,
		quote.Author,
		userID,
	).Scan(&quote.ID, &quote.CreatedAt); err != nil {
		return types.Quote{}, err
	}
	return quote, nil
}

func (r *QuoteRepository) Count(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM quotes`
	var total int
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(row rowScanner) (types.Quote, error) {
	var (
		quote   types.Quote
		userID  sql.NullInt64
		addedBy sql.NullString
	)
	if err := row.Scan(
		&quote.ID,
		&quote.Content,
		&quote.Author,
		&userID,
		&addedBy,
		&quote.CreatedAt,
	); err != nil {
		return types.Quote{}, err
	}
	if userID.Valid {
		id := int(userID.Int64)
		quote.UserID = &id
	}
	if addedBy.Valid {
		name := addedBy.String
		quote.AddedBy = &name
	}
	return quote, nil
}
