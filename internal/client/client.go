// Package client talks to the quoteshare HTTP API on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/quoteshare/apiserver/types"
)

// ErrUnauthorized is returned when the server rejects the stored token. The
// token has already been cleared when it is returned.
var ErrUnauthorized = errors.New("session expired or invalid, please log in again")

// APIError is a non-2xx response carrying the server's message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("request failed (status %d): %s", e.StatusCode, e.Message)
}

// CreatedQuote is the response of a successful submission.
type CreatedQuote struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	UserID    int       `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Client handles HTTP communication with the API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
}

// New creates a client for baseURL. httpClient may be nil.
func New(baseURL string, tokens TokenStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
	}
}

// Register creates an account and returns the server's acknowledgement.
func (c *Client) Register(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Message string `json:"message"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/register", body, "", &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var session Session
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &session); err != nil {
		return Session{}, err
	}
	if err := c.tokens.Save(session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Logout discards the stored session. The server keeps no session state.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

// Session returns the stored session.
func (c *Client) Session() (Session, error) {
	return c.tokens.Load()
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (types.User, error) {
	var user types.User
	err := c.doAuthed(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

// ListQuotes fetches one page. Zero values let the server apply defaults.
func (c *Client) ListQuotes(ctx context.Context, page, pageSize int) (types.QuotePage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		query.Set("pageSize", strconv.Itoa(pageSize))
	}
	path := "/quotes"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result types.QuotePage
	err := c.do(ctx, http.MethodGet, path, nil, "", &result)
	return result, err
}

// GetQuote fetches a single quote.
func (c *Client) GetQuote(ctx context.Context, id int) (types.Quote, error) {
	var quote types.Quote
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quotes/%d", id), nil, "", &quote)
	return quote, err
}

// CreateQuote submits a quote as the logged-in user.
func (c *Client) CreateQuote(ctx context.Context, content, author string) (CreatedQuote, error) {
	var created CreatedQuote
	body := map[string]string{"content": content, "author": author}
	err := c.doAuthed(ctx, http.MethodPost, "/quotes", body, &created)
	return created, err
}

// ShareImage downloads the server-rendered share card.
func (c *Client) ShareImage(ctx context.Context, id int) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, fmt.Sprintf("/quotes/%d/share.png", id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// doAuthed sends the stored token. A 401 clears it and returns
// ErrUnauthorized.
func (c *Client) doAuthed(ctx context.Context, method, path string, body, out any) error {
	session, err := c.tokens.Load()
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, body, session.Token, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		if clearErr := c.tokens.Clear(); clearErr != nil {
			return errors.Join(ErrUnauthorized, clearErr)
		}
		return ErrUnauthorized
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	resp, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
