// Package client talks to the Nomance backing platform: the REST API for
// auth, matches and messages, and the realtime channel endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/nomance-app/nomance/internal/realtime"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = domain.ErrForbidden
	ErrNotFound     = errors.New("not found")
)

// APIError is the error envelope returned by the platform.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers match API errors against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

type Client struct {
	apiURL      string
	realtimeURL string
	http        *http.Client
	session     SessionStore
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSession persists the access token across processes.
func WithSession(s SessionStore) Option {
	return func(c *Client) { c.session = s }
}

func New(apiURL, realtimeURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:      apiURL,
		realtimeURL: realtimeURL,
		http:        &http.Client{Timeout: 15 * time.Second},
		session:     &MemorySession{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type SignUpInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type authResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// SignUp registers an account and stores its session.
func (c *Client) SignUp(ctx context.Context, input SignUpInput) (*domain.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", input, &resp); err != nil {
		return nil, err
	}
	if err := c.session.Save(resp.AccessToken); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return resp.User, nil
}

// SignIn authenticates with email and password and stores the session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", body, &resp); err != nil {
		return nil, err
	}
	if err := c.session.Save(resp.AccessToken); err != nil {
		return nil, errors.Wrap(err, "saving session")
	}
	return resp.User, nil
}

// SignOut forgets the stored session. Tokens are stateless so nothing is
// sent to the platform.
func (c *Client) SignOut(ctx context.Context) error {
	return c.session.Clear()
}

// CurrentUser returns the signed-in user, or nil when there is no session or
// the stored one has expired.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	token, err := c.session.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading session")
	}
	if token == "" {
		return nil, nil
	}

	var user domain.User
	err = c.do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &user)
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Like expresses interest in another user. The returned match is accepted
// when the interest was mutual.
func (c *Client) Like(ctx context.Context, userID uuid.UUID) (*domain.Match, error) {
	var m domain.Match
	if err := c.do(ctx, http.MethodPost, "/api/v1/matches/like", map[string]uuid.UUID{"user_id": userID}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) ListMatches(ctx context.Context) ([]domain.MatchDetail, error) {
	var matches []domain.MatchDetail
	if err := c.do(ctx, http.MethodGet, "/api/v1/matches", nil, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

// GetMatch returns the match with both profiles, or nil if it does not exist.
func (c *Client) GetMatch(ctx context.Context, matchID uuid.UUID) (*domain.MatchDetail, error) {
	var d domain.MatchDetail
	err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+matchID.String(), nil, &d)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) ListMessages(ctx context.Context, matchID uuid.UUID) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.do(ctx, http.MethodGet, "/api/v1/matches/"+matchID.String()+"/messages", nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// InsertMessage writes a message. The nonce is echoed back on the stored row.
func (c *Client) InsertMessage(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	body := map[string]any{"content": msg.Content, "nonce": msg.Nonce}
	var out domain.Message
	if err := c.do(ctx, http.MethodPost, "/api/v1/matches/"+msg.MatchID.String()+"/messages", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks the given incoming messages of a match as read.
func (c *Client) MarkRead(ctx context.Context, matchID uuid.UUID, ids []uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/matches/"+matchID.String()+"/messages/read", map[string][]uuid.UUID{"ids": ids}, nil)
}

func (c *Client) MarkMessageRead(ctx context.Context, messageID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/api/v1/messages/"+messageID.String()+"/read", nil, nil)
}

// Channel returns an unsubscribed realtime channel for topic.
func (c *Client) Channel(topic string, opts realtime.ChannelOptions) realtime.Channel {
	return newWSChannel(c.realtimeURL, c.session, topic, opts)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := c.session.Load()
	if err != nil {
		return errors.Wrap(err, "loading session")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		jww.DEBUG.Printf("api: undecodable %d error body: %v", resp.StatusCode, err)
	} else if len(envelope.Error) > 0 {
		if err := json.Unmarshal(envelope.Error, apiErr); err != nil {
			jww.DEBUG.Printf("api: undecodable %d error body: %v", resp.StatusCode, err)
		}
	}
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
