package swapcard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"allinattendees/pkg/config"
	"allinattendees/pkg/errors"
	"allinattendees/pkg/logger"
	"allinattendees/pkg/retry"
)

// Client talks to the event platform's batched GraphQL endpoint.
type Client struct {
	httpClient *http.Client
	endpoint   string
	eventID    string
	eventSlug  string
	viewID     string
	headers    map[string]string
	retryCfg   *retry.Config
	logger     logger.Logger
}

// NewClient creates a new client from the upstream configuration.
func NewClient(cfg config.SwapcardConfig, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	headers := map[string]string{
		"accept":            "*/*",
		"accept-language":   "en-US,en;q=0.9",
		"content-type":      "application/json",
		"origin":            "https://app.swapcard.com",
		"referer":           "https://app.swapcard.com/",
		"x-client-origin":   "app.swapcard.com",
		"x-client-platform": "Event App",
	}
	if cfg.UserAgent != "" {
		headers["user-agent"] = cfg.UserAgent
	}
	if cfg.BearerToken != "" {
		headers["authorization"] = "Bearer " + cfg.BearerToken
	}
	for key, value := range cfg.ExtraHeaders {
		headers[key] = value
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		eventID:    cfg.EventID,
		eventSlug:  cfg.EventSlug,
		viewID:     cfg.ViewID,
		headers:    headers,
		logger:     log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// WithRetry enables bounded retry with backoff around page fetches.
// A config with MaxAttempts of 1 leaves the client effectively retry-less.
func (c *Client) WithRetry(cfg *retry.Config) *Client {
	c.retryCfg = cfg
	return c
}

// FetchFirstPage issues the initial cursor-less request. The returned
// page carries the total count when the upstream exposes it.
func (c *Client) FetchFirstPage(ctx context.Context) (Page, error) {
	return c.fetchPage(ctx, c.buildInitialOperations())
}

// FetchNextPage issues a cursor-bearing pagination request. The cursor
// must be the most recently returned one; a stale cursor is a caller
// error and is not validated here.
func (c *Client) FetchNextPage(ctx context.Context, cursor string) (Page, error) {
	return c.fetchPage(ctx, c.buildPageOperations(cursor))
}

// FetchPersonDetails fetches detail fields for a single attendee.
func (c *Client) FetchPersonDetails(ctx context.Context, personID string) (*PersonData, error) {
	results, err := c.postOperations(ctx, c.buildDetailOperations(personID))
	if err != nil {
		return nil, err
	}

	for _, result := range results {
		if result.Data != nil && result.Data.Person != nil {
			return result.Data.Person, nil
		}
	}

	return nil, errors.NewMalformed(fmt.Sprintf("no person data in response for %s", personID))
}

func (c *Client) fetchPage(ctx context.Context, ops []Operation) (Page, error) {
	fetch := func() (Page, error) {
		results, err := c.postOperations(ctx, ops)
		if err != nil {
			return Page{}, err
		}
		return c.extractPeoplePage(results), nil
	}

	if c.retryCfg != nil && c.retryCfg.MaxAttempts > 1 {
		return retry.DoWithResult(fetch, c.retryCfg)
	}
	return fetch()
}

// postOperations sends one batched request and decodes the positional
// per-operation results.
func (c *Client) postOperations(ctx context.Context, ops []Operation) ([]OperationResult, error) {
	body, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode operations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending GraphQL batch", map[string]interface{}{
		"url":        c.endpoint,
		"operations": len(ops),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.logger.ErrorWithFields("GraphQL request failed", map[string]interface{}{
			"url":      c.endpoint,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errors.NewTransport(fmt.Sprintf("network error: %v", err), 0)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("GraphQL request completed", map[string]interface{}{
		"url":      c.endpoint,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if err := c.checkResponseStatus(resp); err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransport(fmt.Sprintf("failed to read response body: %v", err), resp.StatusCode)
	}

	var results []OperationResult
	if err := json.Unmarshal(raw, &results); err != nil {
		preview := string(raw)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse GraphQL response", map[string]interface{}{
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return nil, errors.NewMalformed(fmt.Sprintf("failed to parse response: %v", err))
	}

	return results, nil
}

// extractPeoplePage walks the per-operation results for the people
// connection. A result set missing the expected shape yields an empty
// page rather than an error, to tolerate upstream response variance.
func (c *Client) extractPeoplePage(results []OperationResult) Page {
	var page Page

	for _, result := range results {
		if result.Data == nil || result.Data.View == nil || result.Data.View.People == nil {
			continue
		}
		people := result.Data.View.People

		if people.TotalCount > 0 && page.TotalCount == 0 {
			page.TotalCount = people.TotalCount
		}
		page.Records = append(page.Records, people.Nodes...)
		if people.PageInfo.HasNextPage {
			page.HasMore = true
			page.EndCursor = people.PageInfo.EndCursor
		}
	}

	if page.Records == nil && !page.HasMore {
		c.logger.WarnWithFields("no people data in response, treating as empty page", map[string]interface{}{
			"results": len(results),
		})
	}

	return page
}

// checkResponseStatus maps HTTP response status to typed errors.
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.WarnWithFields("authentication rejected", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "authentication required or token expired",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	default:
		return errors.NewTransport(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), resp.StatusCode)
	}
}
