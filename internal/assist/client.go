package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
)

const (
	completionsPath   = "/chat/completions"
	maxErrorBodyBytes = 2048
	retryBase         = 200 * time.Millisecond
)

// Completer sends a transcript upstream and returns the first choice's content.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ClientParams configures the HTTP completions client.
type ClientParams struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	HTTPClient *http.Client
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	maxRetries uint64
	backoff    time.Duration
	http       *http.Client
}

// NewClient validates params and builds a Client.
func NewClient(params ClientParams) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(params.BaseURL), "/")
	if base == "" {
		return nil, errors.New("assist base url required")
	}
	if strings.TrimSpace(params.APIKey) == "" {
		return nil, errors.New("assist api key required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	retries := params.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		endpoint:   base + completionsPath,
		apiKey:     params.APIKey,
		maxRetries: uint64(retries),
		backoff:    retryBase,
		http:       httpClient,
	}, nil
}

// Complete posts req and retries throttling and server errors with
// exponential backoff. Other provider statuses surface as UPSTREAM_ERROR.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode completion request")
	}

	var content string
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var callErr error
		content, callErr = c.post(ctx, body)
		return callErr
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build completion request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "assistant provider timed out")
		}
		return "", retry.RetryableError(pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "assistant provider unreachable"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		upstream := pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("assistant provider error: %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": strings.TrimSpace(string(detail))})
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", retry.RetryableError(upstream)
		}
		return "", upstream
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "assistant provider returned malformed response")
	}
	if len(decoded.Choices) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeUpstream, "assistant provider returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}
