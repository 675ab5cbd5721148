// Package upstream opens the streaming request to the RAG function endpoint
// the relay reads answers from.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/config"
	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/relay/header"
)

var (
	// ErrUnexpectedStatus is returned when the upstream answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("unexpected upstream status")

	// ErrNoBody is returned when the upstream response carries no body.
	ErrNoBody = errors.New("upstream response has no body")
)

// Config is the upstream connector configuration.
type Config struct {
	// URL is the RAG function endpoint.
	URL string

	// FunctionsKey is sent as the "code" query parameter.
	FunctionsKey string

	// Timeout bounds a whole upstream request, body included. Zero means no limit.
	Timeout time.Duration

	// RAG holds the settings copied into every request body.
	RAG config.RAGConfig
}

// RequestData holds the generation parameters of a Payload.
type RequestData struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Payload is the JSON body posted to the RAG function.
type Payload struct {
	RedisHost             string      `json:"redis_host"`
	RedisPort             int         `json:"redis_port"`
	RedisPassword         string      `json:"redis_password"`
	EmbeddingKey          string      `json:"openai_embedding_key"`
	EmbeddingModel        string      `json:"openai_embedding_model"`
	LLMKey                string      `json:"openai_llm_key"`
	LLMModel              string      `json:"openai_llm_model"`
	LLMURL                string      `json:"url_llm"`
	Query                 string      `json:"query"`
	Rule                  string      `json:"rule"`
	StoreCacheEndpoint    string      `json:"store_cache_endpoint"`
	SemanticCacheEndpoint string      `json:"semantic_cache_endpoint"`
	RequestData           RequestData `json:"request_data"`
	TopN                  int         `json:"top_n"`
	Messages              []llm.Turn  `json:"messages"`
}

// Client opens one streaming POST per chat request.
type Client struct {
	config        Config
	endpoint      string
	httpClient    *http.Client
	headerHandler *header.Handler
	logger        *zap.Logger
}

// New creates a Client. The endpoint URL is resolved once.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	endpoint, err := buildEndpoint(cfg.URL, cfg.FunctionsKey)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:   cfg,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headerHandler: header.NewHandler(),
		logger:        logger,
	}, nil
}

// Endpoint returns the resolved upstream URL, including the functions key.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// NewPayload builds the request body for a query and its prior turns.
func (c *Client) NewPayload(query string, turns []llm.Turn) *Payload {
	rag := c.config.RAG
	if turns == nil {
		turns = []llm.Turn{}
	}

	return &Payload{
		RedisHost:             rag.RedisHost,
		RedisPort:             rag.RedisPort,
		RedisPassword:         rag.RedisPassword,
		EmbeddingKey:          rag.EmbeddingKey,
		EmbeddingModel:        rag.EmbeddingModel,
		LLMKey:                rag.LLMKey,
		LLMModel:              rag.LLMModel,
		LLMURL:                rag.LLMURL,
		Query:                 query,
		Rule:                  rag.Rule,
		StoreCacheEndpoint:    rag.StoreCacheEndpoint,
		SemanticCacheEndpoint: rag.SemanticCacheEndpoint,
		RequestData: RequestData{
			Temperature: rag.Temperature,
			MaxTokens:   rag.MaxTokens,
		},
		TopN:     rag.TopN,
		Messages: turns,
	}
}

// Open posts the payload and returns the streaming response once its headers
// arrived with a 2xx status. The caller owns the returned body.
func (c *Client) Open(ctx context.Context, payload *Payload) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating upstream request: %w", err)
	}
	c.headerHandler.SetUpstreamRequestHeaders(req)

	c.logger.Debug("opening upstream stream",
		zap.String("url", c.config.URL),
		zap.Int("turns", len(payload.Messages)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The request URL carries the functions key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = c.config.URL
		}
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		c.logger.Error("upstream returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(preview)),
		)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}

	return resp.Body, nil
}

func buildEndpoint(rawURL, key string) (string, error) {
	if rawURL == "" {
		return "", errors.New("upstream url is required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing upstream url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("upstream url must be absolute: %q", rawURL)
	}

	if key != "" {
		q := u.Query()
		q.Set("code", key)
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
