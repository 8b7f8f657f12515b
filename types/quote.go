package types

import "time"

// Quote represents a quotation shared on the site.
//
// Author is the person being quoted and is free-form text. The contributor
// is tracked separately through UserID and, on reads, AddedBy.
type Quote struct {
	// ID is the unique identifier of the quote.
	ID int `json:"id" db:"id"`

	// Content is the quoted text.
	Content string `json:"content" db:"content"`

	// Author is the name of the quoted person.
	Author string `json:"author" db:"author"`

	// UserID references the contributing user. Seeded quotes have none.
	UserID *int `json:"user_id,omitempty" db:"user_id"`

	// AddedBy is the contributing user's username, resolved on reads.
	// Nil means the quote was seeded without a contributor.
	AddedBy *string `json:"added_by" db:"added_by"`

	// CreatedAt is assigned by the store at insert time and never changes.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// QuotePage is one page of the newest-first quote listing.
type QuotePage struct {
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"total_pages"`
	Quotes     []Quote `json:"quotes"`
}

// QuoteEvent is published whenever a quote is created.
type QuoteEvent struct {
	QuoteID   int       `json:"quote_id"`
	UserID    *int      `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
