// Package coach is the client of the AI coaching endpoint.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
)

// Kind discriminates coaching requests.
type Kind string

const (
	KindAnalyzeBio    Kind = "analyze_bio"
	KindAnalyzePhotos Kind = "analyze_photos"
	KindChat          Kind = "chat"
)

const maxPhotos = 6

var (
	ErrEmptyBio      = errors.New("bio is empty")
	ErrNoPhotos      = errors.New("no photos to analyze")
	ErrTooManyPhotos = errors.New("too many photos")
	ErrEmptyChat     = errors.New("chat has no messages")
	ErrUnknownKind   = errors.New("unknown request kind")
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is sent as a single JSON object whose type field selects the
// remaining fields.
type Request struct {
	Type      Kind          `json:"type"`
	Bio       string        `json:"bio,omitempty"`
	PhotoURLs []string      `json:"photo_urls,omitempty"`
	Messages  []ChatMessage `json:"messages,omitempty"`
}

func (r Request) Validate() error {
	switch r.Type {
	case KindAnalyzeBio:
		if strings.TrimSpace(r.Bio) == "" {
			return ErrEmptyBio
		}
	case KindAnalyzePhotos:
		if len(r.PhotoURLs) == 0 {
			return ErrNoPhotos
		}
		if len(r.PhotoURLs) > maxPhotos {
			return ErrTooManyPhotos
		}
	case KindChat:
		if len(r.Messages) == 0 {
			return ErrEmptyChat
		}
	default:
		return errors.Wrap(ErrUnknownKind, string(r.Type))
	}
	return nil
}

type Suggestion struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type Response struct {
	Score       *int         `json:"score,omitempty"`
	Suggestions []Suggestion `json:"suggestions"`
	Reply       string       `json:"reply,omitempty"`
}

// Error is a non-2xx answer from the endpoint.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("coach: %d %s", e.Status, e.Message)
}

type Client struct {
	url   string
	http  *http.Client
	token func() (string, error)
}

// New creates a client. token may be nil for anonymous use.
func New(url string, token func() (string, error)) *Client {
	return &Client{
		url:   url,
		http:  &http.Client{Timeout: 60 * time.Second},
		token: token,
	}
}

func (c *Client) AnalyzeBio(ctx context.Context, bio string) (*Response, error) {
	return c.Analyze(ctx, Request{Type: KindAnalyzeBio, Bio: bio})
}

func (c *Client) AnalyzePhotos(ctx context.Context, photoURLs []string) (*Response, error) {
	return c.Analyze(ctx, Request{Type: KindAnalyzePhotos, PhotoURLs: photoURLs})
}

func (c *Client) Chat(ctx context.Context, messages []ChatMessage) (*Response, error) {
	return c.Analyze(ctx, Request{Type: KindChat, Messages: messages})
}

// Analyze makes exactly one attempt.
func (c *Client) Analyze(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encoding coach request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building coach request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token()
		if err != nil {
			return nil, errors.Wrap(err, "loading session")
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "calling coach")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		if envelope.Error == "" {
			envelope.Error = http.StatusText(resp.StatusCode)
		}
		jww.WARN.Printf("coach: %s failed with %d", req.Type, resp.StatusCode)
		return nil, &Error{Status: resp.StatusCode, Message: envelope.Error}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decoding coach response")
	}
	return &out, nil
}
