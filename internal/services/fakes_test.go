package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/quoteshare/apiserver/internal/render"
	"github.com/quoteshare/apiserver/internal/storage"
	"github.com/quoteshare/apiserver/internal/store"
	"github.com/quoteshare/apiserver/types"
)

type memUsers struct {
	mu    sync.Mutex
	users []types.User
}

func (m *memUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = len(m.users) + 1
	user.CreatedAt = time.Now()
	m.users = append(m.users, user)
	return user, nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type memQuotes struct {
	mu         sync.Mutex
	quotes     []types.Quote
	users      map[int]string
	clock      time.Time
	getCalls   int
	countCalls int
}

func newMemQuotes() *memQuotes {
	return &memQuotes{
		users: map[int]string{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memQuotes) List(_ context.Context, offset, limit int) ([]types.Quote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]types.Quote(nil), m.quotes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if offset >= len(sorted) {
		return nil, len(sorted), nil
	}
	end := min(offset+limit, len(sorted))
	page := sorted[offset:end]
	for i := range page {
		m.attribute(&page[i])
	}
	return page, len(sorted), nil
}

func (m *memQuotes) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countCalls++
	return len(m.quotes), nil
}

func (m *memQuotes) Get(_ context.Context, id int) (types.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	for _, q := range m.quotes {
		if q.ID == id {
			m.attribute(&q)
			return q, nil
		}
	}
	return types.Quote{}, store.ErrNotFound
}

func (m *memQuotes) Create(_ context.Context, quote types.Quote) (types.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	quote.ID = len(m.quotes) + 1
	quote.CreatedAt = m.clock
	m.quotes = append(m.quotes, quote)
	return quote, nil
}

func (m *memQuotes) attribute(q *types.Quote) {
	if q.UserID == nil {
		return
	}
	if name, ok := m.users[*q.UserID]; ok {
		q.AddedBy = &name
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	quotes []types.Quote
	err    error
}

func (p *recordingPublisher) QuoteCreated(_ context.Context, quote types.Quote) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes = append(p.quotes, quote)
	return p.err
}

type countingRenderer struct {
	mu    sync.Mutex
	cards []render.Card
	err   error
}

func (r *countingRenderer) Render(card render.Card) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards = append(r.cards, card)
	if r.err != nil {
		return nil, r.err
	}
	return append(append([]byte{}, pngSignature...), card.Content...), nil
}

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	ctypes  map[string]string
	deleted []string
	getErr  error
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, ctypes: map[string]string{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.ctypes[key] = contentType
	return nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

var errBoom = errors.New("boom")
