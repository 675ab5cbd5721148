// Package client is the Go client of a ragrelay relay. It bootstraps client
// sessions and streams chat answers, reassembling the relayed event stream
// into the growing answer text.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/sse"
)

var (
	// ErrUnexpectedStatus is returned when the relay answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrNoBody is returned when a relay response carries no body.
	ErrNoBody = errors.New("response has no body")
)

const clientIDHeader = "X-Client-Id"

// Client talks to one relay. It has at most one active stream: starting a
// new one cancels the previous.
type Client struct {
	baseURL    string
	separator  string
	httpClient *http.Client
	logger     *zap.Logger

	mu       sync.Mutex
	clientID string
	active   *Stream
}

// Option configures a Client.
type Option func(*Client)

// WithSeparator sets the text joining consecutive payloads of an answer.
func WithSeparator(sep string) Option {
	return func(c *Client) { c.separator = sep }
}

// WithHTTPClient sets the http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClientID sets the session id sent with every chat request.
func WithClientID(id string) Option {
	return func(c *Client) { c.clientID = id }
}

// New creates a Client for the relay at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("relay url is required")
	}

	c := &Client{
		baseURL:    baseURL,
		separator:  sse.DefaultSeparator,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ClientID returns the session id sent with chat requests.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// SetClientID sets the session id sent with chat requests.
func (c *Client) SetClientID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = id
}

// NewSession asks the relay for a new client session id and adopts it.
func (c *Client) NewSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/new-session", nil)
	if err != nil {
		return "", fmt.Errorf("creating session request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var session llm.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("decoding session response: %w", err)
	}
	if session.ClientID == "" {
		return "", errors.New("relay returned an empty client id")
	}

	c.SetClientID(session.ClientID)
	return session.ClientID, nil
}

// Stream starts streaming the answer to query. The previous stream of this
// Client, if any, is closed first. Failures are reported on the stream's
// event channel.
func (c *Client) Stream(ctx context.Context, query string, messages []llm.Message) (*Stream, error) {
	body, err := json.Marshal(llm.ChatRequest{Query: query, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.Close()
		c.active = nil
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.clientID != "" {
		req.Header.Set(clientIDHeader, c.clientID)
	}

	s := newStream(ctx, c.httpClient, req, NewReassembler(c.separator), c.logger)
	c.active = s
	go s.run()

	return s, nil
}

// Close closes the active stream, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Close()
		c.active = nil
	}
}

// readResponse checks a chat response before its body is streamed.
func readResponse(resp *http.Response) (io.ReadCloser, error) {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}
	return resp.Body, nil
}
