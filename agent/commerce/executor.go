package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 4 << 20

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Category string `json:"category"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// execute runs one logical query against the gateway. Connection failures
// and retryable statuses are re-attempted with exponential backoff up to the
// configured cap; everything else surfaces immediately as a tagged *Error.
func (c *Client) execute(ctx context.Context, operation, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, newError(CodeInvalidResponse, "encode request: %v", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := ExponentialBackoff(attempt-1, c.backoffBase, c.backoffCap)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, newError(CodeHTTPError, "request cancelled: %v", err)
			}
		}

		data, err := c.attempt(ctx, operation, body)
		if err == nil {
			c.countAttempt(operation, "success")
			return data, nil
		}

		if ce, ok := err.(*retryableError); ok {
			c.countAttempt(operation, "retry")
			lastErr = ce.cause
			log.Warn().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Err(ce.cause).
				Msg("commerce request failed, will retry")
			continue
		}

		c.countAttempt(operation, "error")
		return nil, err
	}

	c.countAttempt(operation, "exhausted")
	return nil, newError(CodeMaxRetriesExceeded, "%s failed after %d attempts: %v", operation, c.maxAttempts, lastErr)
}

// retryableError wraps a transport-level failure inside the attempt loop.
type retryableError struct {
	cause error
}

func (e *retryableError) Error() string { return e.cause.Error() }

func (c *Client) attempt(ctx context.Context, operation string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(CodeHTTPError, "build request: %v", err)
	}

	token, storeCode := c.authContext()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Store", storeCode)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(CodeHTTPError, "%s cancelled: %v", operation, ctx.Err())
		}
		return nil, &retryableError{cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &retryableError{cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		if IsRetryableHTTPStatus(resp.StatusCode) {
			return nil, &retryableError{cause: fmt.Errorf("http status %d", resp.StatusCode)}
		}
		return nil, newError(CodeHTTPError, "%s returned status %d", operation, resp.StatusCode)
	}

	var parsed graphQLResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, newError(CodeInvalidResponse, "%s returned malformed body: %v", operation, err)
	}

	if len(parsed.Errors) > 0 {
		first := parsed.Errors[0]
		code := classifyBusinessError(first.Extensions.Category, first.Message)
		return nil, newError(code, "%s", first.Message)
	}

	return parsed.Data, nil
}

func (c *Client) countAttempt(operation, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RemoteAttempts.WithLabelValues(operation, outcome).Inc()
}
