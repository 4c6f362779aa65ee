package main

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

	"github.com/cenkalti/backoff/v4"

	"github.com/iho/accounter/internal/adapter/http/dto"
)

// errRetry marks a response worth repeating: the ledger has not replayed
// far enough, or the same idempotency key is still in flight.
var errRetry = errors.New("not ready")

// apiError is a non-2xx response from the API.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type client struct {
	baseURL string
	http    *http.Client
	// wait bounds how long 409 responses are retried. Zero disables retries.
	wait time.Duration
}

func newClient(baseURL string, timeout, wait time.Duration) *client {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		wait:    wait,
	}
}

// get fetches path with an optional clock query and decodes into out.
func (c *client) get(ctx context.Context, path, clock string, out any) error {
	if clock != "" {
		path += "?clock=" + url.QueryEscape(clock)
	}
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

// post sends body as JSON. idempotencyKey is sent when set.
func (c *client) post(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}
	return c.do(ctx, http.MethodPost, path, raw, headers, out)
}

func (c *client) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	op := func() error {
		err := c.once(ctx, method, path, body, headers, out)
		if errors.Is(err, errRetry) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	if c.wait <= 0 {
		return unwrapRetry(op())
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = c.wait
	return unwrapRetry(backoff.Retry(op, backoff.WithContext(b, ctx)))
}

func (c *client) once(ctx context.Context, method, path string, body []byte, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		var payload dto.ErrorResponse
		if json.Unmarshal(raw, &payload) == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		}
		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("%w: %w", errRetry, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrapRetry reports the API error behind an exhausted retry.
func unwrapRetry(err error) error {
	var apiErr *apiError
	if errors.Is(err, errRetry) && errors.As(err, &apiErr) {
		return apiErr
	}
	return err
}
