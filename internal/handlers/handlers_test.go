package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteshare/apiserver/internal/services"
	"github.com/quoteshare/apiserver/types"
)

const testSecret = "handler-test-secret"

type fakeAuth struct {
	registerErr error
	loginResult services.LoginResult
	loginErr    error
	users       map[int]types.User
}

func (f *fakeAuth) Register(context.Context, string, string) error { return f.registerErr }

func (f *fakeAuth) Login(context.Context, string, string) (services.LoginResult, error) {
	return f.loginResult, f.loginErr
}

func (f *fakeAuth) GetByID(_ context.Context, id int) (types.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return types.User{}, services.ErrNotFound
}

type fakeQuotes struct {
	page      types.QuotePage
	listErr   error
	gotPage   int
	gotSize   int
	created   []types.Quote
	createErr error
	quotes    map[int]types.Quote
}

func (f *fakeQuotes) List(_ context.Context, page, pageSize int) (types.QuotePage, error) {
	f.gotPage, f.gotSize = page, pageSize
	return f.page, f.listErr
}

func (f *fakeQuotes) Get(_ context.Context, id int) (types.Quote, error) {
	if q, ok := f.quotes[id]; ok {
		return q, nil
	}
	return types.Quote{}, fmt.Errorf("%w: quote %d does not exist", services.ErrNotFound, id)
}

func (f *fakeQuotes) Create(_ context.Context, identity *services.Identity, content, author string) (types.Quote, error) {
	if f.createErr != nil {
		return types.Quote{}, f.createErr
	}
	userID := identity.ID
	q := types.Quote{
		ID:        len(f.created) + 1,
		Content:   content,
		Author:    author,
		UserID:    &userID,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.created = append(f.created, q)
	return q, nil
}

type fakeCards struct {
	image services.ShareImage
	err   error
}

func (f *fakeCards) Render(context.Context, int) (services.ShareImage, error) {
	return f.image, f.err
}

func newTestRouter(auth Authenticator, quotes QuoteBrowser, cards ShareCards) (http.Handler, *services.JWTIssuer) {
	issuer := services.NewJWTIssuer(testSecret, time.Hour)
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, auth, issuer, nil)
	})
	r.Route("/quotes", func(r chi.Router) {
		QuoteRouter(r, quotes, cards, RequireAuth(issuer), nil)
	})
	return r, issuer
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "success", body: `{"username":"alice","password":"pw1"}`, wantStatus: http.StatusOK, wantMsg: "user registered"},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest, wantMsg: "invalid request"},
		{name: "validation", body: `{"username":""}`, err: fmt.Errorf("%w: username and password are required", services.ErrValidation), wantStatus: http.StatusBadRequest, wantMsg: "username and password are required"},
		{name: "duplicate", body: `{"username":"alice","password":"pw1"}`, err: fmt.Errorf("%w: username already exists", services.ErrConflict), wantStatus: http.StatusBadRequest, wantMsg: "username already exists"},
		{name: "store failure", body: `{"username":"alice","password":"pw1"}`, err: errors.New("connection reset"), wantStatus: http.StatusInternalServerError, wantMsg: "failed to register user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeAuth{registerErr: tt.err}, &fakeQuotes{}, &fakeCards{})
			rec := doRequest(t, router, http.MethodPost, "/auth/register", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeMessage(t, rec))
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		auth := &fakeAuth{loginResult: services.LoginResult{Token: "tok", Username: "alice"}}
		router, _ := newTestRouter(auth, &fakeQuotes{}, &fakeCards{})

		rec := doRequest(t, router, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw1"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"token":"tok","username":"alice"}`, rec.Body.String())
	})

	for name, err := range map[string]error{
		"unknown user":   fmt.Errorf("%w: user does not exist", services.ErrNotFound),
		"wrong password": fmt.Errorf("%w: wrong password", services.ErrAuth),
		"empty fields":   fmt.Errorf("%w: username and password are required", services.ErrValidation),
	} {
		t.Run(name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeAuth{loginErr: err}, &fakeQuotes{}, &fakeCards{})
			rec := doRequest(t, router, http.MethodPost, "/auth/login", `{"username":"alice","password":"x"}`, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestMe(t *testing.T) {
	auth := &fakeAuth{users: map[int]types.User{1: {ID: 1, Username: "alice", PasswordHash: "secret-hash"}}}
	router, issuer := newTestRouter(auth, &fakeQuotes{}, &fakeCards{})

	token, err := issuer.Issue(services.Identity{ID: 1, Username: "alice"})
	require.NoError(t, err)
	rec := doRequest(t, router, http.MethodGet, "/auth/me", "", bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	ghost, err := issuer.Issue(services.Identity{ID: 2, Username: "ghost"})
	require.NoError(t, err)
	rec = doRequest(t, router, http.MethodGet, "/auth/me", "", bearer(ghost))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListQuotes(t *testing.T) {
	name := "alice"
	quotes := &fakeQuotes{page: types.QuotePage{
		Total: 11, Page: 2, PageSize: 10, TotalPages: 2,
		Quotes: []types.Quote{{ID: 1, Content: "c", Author: "a", AddedBy: &name}},
	}}
	router, _ := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})

	rec := doRequest(t, router, http.MethodGet, "/quotes?page=2&pageSize=10", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, quotes.gotPage)
	assert.Equal(t, 10, quotes.gotSize)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 11, body["total"])
	assert.EqualValues(t, 10, body["pageSize"])
	assert.EqualValues(t, 2, body["total_pages"])
	first := body["quotes"].([]any)[0].(map[string]any)
	assert.Equal(t, "alice", first["added_by"])
}

func TestListQuotes_Params(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantPage   int
		wantSize   int
	}{
		{name: "defaults left to service", query: "", wantStatus: http.StatusOK},
		{name: "limit alias", query: "?limit=5", wantStatus: http.StatusOK, wantSize: 5},
		{name: "non-numeric page", query: "?page=abc", wantStatus: http.StatusBadRequest},
		{name: "non-numeric size", query: "?pageSize=ten", wantStatus: http.StatusBadRequest},
		{name: "negative passes through", query: "?page=-1", wantStatus: http.StatusOK, wantPage: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes := &fakeQuotes{}
			router, _ := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})
			rec := doRequest(t, router, http.MethodGet, "/quotes"+tt.query, "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantPage, quotes.gotPage)
				assert.Equal(t, tt.wantSize, quotes.gotSize)
			}
		})
	}
}

func TestListQuotes_Failure(t *testing.T) {
	router, _ := newTestRouter(&fakeAuth{}, &fakeQuotes{listErr: errors.New("db down")}, &fakeCards{})
	rec := doRequest(t, router, http.MethodGet, "/quotes", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "failed to fetch quotes", decodeMessage(t, rec))
}

func TestCreateQuote(t *testing.T) {
	quotes := &fakeQuotes{}
	router, issuer := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})
	token, err := issuer.Issue(services.Identity{ID: 7, Username: "alice"})
	require.NoError(t, err)

	rec := doRequest(t, router, http.MethodPost, "/quotes", `{"content":"Be kind.","author":"Anon"}`, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"content":"Be kind.","author":"Anon","user_id":7,"created_at":"2024-01-02T03:04:05Z"}`, rec.Body.String())
}

func TestCreateQuote_Rejected(t *testing.T) {
	expired := services.NewJWTIssuer(testSecret, time.Nanosecond)
	expiredToken, err := expired.Issue(services.Identity{ID: 7, Username: "alice"})
	require.NoError(t, err)
	time.Sleep(time.Second)

	otherToken, err := services.NewJWTIssuer("other", time.Hour).Issue(services.Identity{ID: 7, Username: "alice"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header http.Header
	}{
		{name: "missing token", header: nil},
		{name: "wrong scheme", header: http.Header{"Authorization": []string{"Basic abc"}}},
		{name: "expired", header: bearer(expiredToken)},
		{name: "foreign signature", header: bearer(otherToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quotes := &fakeQuotes{}
			router, _ := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})
			rec := doRequest(t, router, http.MethodPost, "/quotes", `{"content":"c","author":"a"}`, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, quotes.created)
		})
	}

	t.Run("validation", func(t *testing.T) {
		quotes := &fakeQuotes{createErr: fmt.Errorf("%w: content and author are required", services.ErrValidation)}
		router, issuer := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})
		token, err := issuer.Issue(services.Identity{ID: 7, Username: "alice"})
		require.NoError(t, err)

		rec := doRequest(t, router, http.MethodPost, "/quotes", `{"content":"","author":"a"}`, bearer(token))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "content and author are required", decodeMessage(t, rec))
	})
}

func TestGetQuote(t *testing.T) {
	quotes := &fakeQuotes{quotes: map[int]types.Quote{3: {ID: 3, Content: "c", Author: "a"}}}
	router, _ := newTestRouter(&fakeAuth{}, quotes, &fakeCards{})

	rec := doRequest(t, router, http.MethodGet, "/quotes/3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"added_by":null`)

	rec = doRequest(t, router, http.MethodGet, "/quotes/4", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "quote 4 does not exist", decodeMessage(t, rec))

	rec = doRequest(t, router, http.MethodGet, "/quotes/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShareImage(t *testing.T) {
	cards := &fakeCards{image: services.ShareImage{Data: []byte("\x89PNG"), ContentType: "image/png", Hash: "abc123"}}
	router, _ := newTestRouter(&fakeAuth{}, &fakeQuotes{}, cards)

	rec := doRequest(t, router, http.MethodGet, "/quotes/5/share.png", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"abc123"`, rec.Header().Get("ETag"))
	assert.Equal(t, `inline; filename="quote-5.png"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "\x89PNG", rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/quotes/5/share.png", "", http.Header{"If-None-Match": []string{`"abc123"`}})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.Bytes())

	rec = doRequest(t, router, http.MethodGet, "/quotes/5/share.png", "", http.Header{"If-None-Match": []string{`"stale"`}})
	assert.Equal(t, http.StatusOK, rec.Code)

	cards.err = fmt.Errorf("%w: quote 5 does not exist", services.ErrNotFound)
	rec = doRequest(t, router, http.MethodGet, "/quotes/5/share.png", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "empty", header: "", want: false},
		{name: "exact", header: `"abc123"`, want: true},
		{name: "weak validator", header: `W/"abc123"`, want: true},
		{name: "list", header: `"old", "abc123"`, want: true},
		{name: "list without spaces", header: `"old",W/"abc123"`, want: true},
		{name: "wildcard", header: "*", want: true},
		{name: "other tags", header: `"old", W/"older"`, want: false},
		{name: "unquoted", header: "abc123", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, etagMatches(tt.header, `"abc123"`))
		})
	}
}
