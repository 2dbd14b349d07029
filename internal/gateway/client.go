// Package gateway is the HTTP persistence gateway used by the wizard to mirror
// session state to the quiz backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quizflow/internal/model"
	"quizflow/internal/wizard"
)

var _ wizard.Gateway = (*Client)(nil)

var ErrRateLimited = errors.New("rate limited")

// StatusError is a non-2xx answer from the backend
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quiz API error %d: %s", e.Code, e.Body)
}

// Config configures the client
type Config struct {
	// BaseURL includes the flow prefix, e.g. http://localhost:8080/api/quiz
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"` // 0 means a single attempt
	Backoff    time.Duration `yaml:"backoff"`     // first 429 backoff, doubled per attempt
}

// Client talks to /api/{quiz|requirements}/*
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	log        *zap.Logger

	mu     sync.Mutex
	tokens map[string]string // session id -> bearer token
}

// NewClient creates a gateway client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		log:        log.Named("gateway"),
		tokens:     map[string]string{},
	}
}

// StartSession opens a backend session and keeps its token for later calls
func (c *Client) StartSession(ctx context.Context, req model.StartRequest) (string, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/start", "", req)
	if err != nil {
		return "", err
	}
	var resp model.StartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse start response: %w", err)
	}
	if resp.SessionID == "" {
		return "", errors.New("start response without session id")
	}
	c.mu.Lock()
	c.tokens[resp.SessionID] = resp.Token
	c.mu.Unlock()
	return resp.SessionID, nil
}

// RecordAnswer mirrors one answer
func (c *Client) RecordAnswer(ctx context.Context, req model.AnswerRequest) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/answer", c.token(req.SessionID), req)
	return err
}

// PatchProgress mirrors the navigation state
func (c *Client) PatchProgress(ctx context.Context, patch model.ProgressPatch) error {
	_, err := c.doRequest(ctx, http.MethodPatch, "/progress", c.token(patch.SessionID), patch)
	return err
}

// FlushInteractions sends one telemetry batch
func (c *Client) FlushInteractions(ctx context.Context, sessionID string, batch []model.MicroInteraction) error {
	payload := model.InteractionBatch{SessionID: sessionID, Interactions: batch}
	_, err := c.doRequest(ctx, http.MethodPost, "/interactions", c.token(sessionID), payload)
	return err
}

// CompleteSession ends the session and returns the recommendation summary
func (c *Client) CompleteSession(ctx context.Context, sessionID string) (*model.CompletionResult, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/complete", c.token(sessionID), model.CompleteRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	var res model.CompletionResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	return &res, nil
}

// Catalog fetches the published question catalog of a quiz
func (c *Client) Catalog(ctx context.Context, quizID string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/catalog/"+url.PathEscape(quizID), "", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (c *Client) token(sessionID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[sessionID]
}

// doRequest performs one call, retrying transport errors and 429s up to maxRetries times
func (c *Client) doRequest(ctx context.Context, method, path, token string, payload any) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}
	target := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying", zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt))
		}

		var body io.Reader
		if raw != nil {
			body = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = ErrRateLimited
			if attempt == c.maxRetries {
				break
			}
			backoff := time.Duration(math.Pow(2, float64(attempt))) * c.backoff
			c.log.Debug("rate limited", zap.String("path", path), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
		}
		return respBody, nil
	}

	if c.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
