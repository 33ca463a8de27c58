package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/cacheval/config"
	"github.com/BaSui01/cacheval/types"
)

// HTTPGenerator calls a real answer backend over HTTP. The backend takes a
// JSON question and returns a JSON answer; non-2xx statuses are mapped onto
// the harness error codes.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	counter *TokenCounter
	logger  *zap.Logger
}

type httpAnswerRequest struct {
	Question string `json:"question"`
}

type httpAnswerResponse struct {
	Answer string `json:"answer"`
	Model  string `json:"model,omitempty"`
	Tokens int    `json:"tokens,omitempty"`
}

// NewHTTPGenerator creates a generator for the configured backend URL.
func NewHTTPGenerator(cfg config.UpstreamConfig, counter *TokenCounter, logger *zap.Logger) (*HTTPGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("http upstream requires base_url")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid upstream base_url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		counter: counter,
		logger:  logger.With(zap.String("component", "upstream.http")),
	}, nil
}

// Name returns the generator identifier.
func (g *HTTPGenerator) Name() string { return "http" }

// Generate posts the question to the backend's answer endpoint.
func (g *HTTPGenerator) Generate(ctx context.Context, question string) (*Answer, error) {
	payload, err := json.Marshal(httpAnswerRequest{Question: question})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "encode upstream request").WithCause(err)
	}

	endpoint := g.baseURL + "/answer"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build upstream request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, mapContextErr(ctxErr)
		}
		var uerr *url.Error
		if errors.As(err, &uerr) && uerr.Timeout() {
			return nil, types.NewError(types.ErrUpstreamTimeout, "upstream call timed out").
				WithHTTPStatus(http.StatusGatewayTimeout).WithRetryable(true).WithCause(err)
		}
		return nil, types.NewError(types.ErrUpstreamError, "upstream request failed").
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapStatusError(resp.StatusCode)
	}

	var body httpAnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode upstream response").
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true).WithCause(err)
	}
	if body.Answer == "" {
		return nil, types.NewError(types.ErrUpstreamError, "upstream returned empty answer").
			WithHTTPStatus(http.StatusBadGateway).WithRetryable(true)
	}

	tokens := body.Tokens
	if tokens == 0 {
		tokens = g.counter.Count(body.Answer)
	}
	return &Answer{Text: body.Answer, Tokens: tokens, Model: body.Model}, nil
}

// mapStatusError converts a backend HTTP status into a harness error.
func mapStatusError(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, "upstream rate limited").
			WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, "upstream timed out").
			WithHTTPStatus(status).WithRetryable(true)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("upstream error: status %d", status)).
			WithHTTPStatus(status).WithRetryable(true)
	default:
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("upstream rejected request: status %d", status)).
			WithHTTPStatus(status).WithRetryable(false)
	}
}
