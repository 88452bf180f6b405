package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"cryptodata/pkg/config"
	"cryptodata/pkg/dataset"
	errs "cryptodata/pkg/errors"
	"cryptodata/pkg/logger"
)

// Client fetches trade pages from the Kraken public API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	schema     dataset.Schema
	logger     logger.Logger
}

// NewClient creates a client for the configured endpoint. schema selects
// which optional trade fields the returned pages keep; a page only claims a
// field when its rows carry it.
func NewClient(cfg config.KrakenConfig, schema dataset.Schema, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent": cfg.UserAgent,
			"Accept":     "application/json",
		},
		baseURL: baseURL,
		schema:  schema,
		logger:  log.WithField("component", "kraken"),
	}
}

// FetchPage requests the trades strictly after cursor (nanoseconds since the
// epoch) and returns them with the cursor for the next request.
func (c *Client) FetchPage(ctx context.Context, pair string, cursor int64) (*dataset.Page, error) {
	url := TradesURL(c.baseURL, pair, cursor)

	var response tradesResponse
	if err := c.getJSON(ctx, url, &response); err != nil {
		return nil, err
	}

	apiErrors, warnings := splitWarnings(response.Error)
	if len(warnings) > 0 {
		c.logger.WarnWithFields("api returned warnings", map[string]interface{}{
			"pair":     pair,
			"since":    cursor,
			"warnings": warnings,
		})
	}

	if len(apiErrors) > 0 || response.Result == nil {
		apiErr := apiError(apiErrors)
		c.logger.WarnWithFields("response carried no result", map[string]interface{}{
			"pair":       pair,
			"since":      cursor,
			"error_type": string(apiErr.Type),
			"api_errors": response.Error,
		})
		return nil, apiErr
	}

	key, ok := response.pairKey(pair)
	if !ok {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("result has no trades for %s", pair),
		}
	}

	lastRaw, ok := response.Result[lastKey]
	if !ok {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: "result has no last marker",
		}
	}
	last, err := parseLast(lastRaw)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("invalid last marker: %v", err),
			Err:     err,
		}
	}

	trades, carried, err := parseTrades(response.Result[key])
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("invalid trades for %s: %v", key, err),
			Err:     err,
		}
	}

	c.logger.DebugWithFields("trades page decoded", map[string]interface{}{
		"pair":   key,
		"since":  cursor,
		"last":   last,
		"trades": len(trades),
	})

	// the page keeps the configured fields the rows actually carry
	schema := c.schema
	if len(trades) > 0 {
		schema = dataset.Schema{
			Side:      c.schema.Side && carried.Side,
			OrderType: c.schema.OrderType && carried.OrderType,
		}
	}

	return &dataset.Page{
		Trades: trades,
		Last:   last,
		Schema: schema,
	}, nil
}

// getJSON performs a GET request and decodes the JSON envelope
func (c *Client) getJSON(ctx context.Context, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Err:     err,
		}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError("failed to read response body", err, resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			Err:     err,
		}
	}

	return nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WithError(err).ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"duration": duration,
		})
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, fmt.Errorf("request aborted: %w", ctxErr)
		}
		return nil, transportError("request failed", err, 0)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// transportError wraps a transport failure, keeping timeouts apart from
// dropped connections.
func transportError(msg string, err error, code int) *errs.Error {
	errorType := errs.ErrorTypeNetwork
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		errorType = errs.ErrorTypeTimeout
	}
	return &errs.Error{
		Type:    errorType,
		Message: fmt.Sprintf("%s: %v", msg, err),
		Code:    code,
		Err:     err,
	}
}

// checkResponseStatus maps HTTP status codes to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeRateLimit,
			Message: "rate limit exceeded",
			Code:    resp.StatusCode,
		}
	case errs.IsRetryableStatusCode(resp.StatusCode):
		c.logger.ErrorWithFields("server error", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
		}
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("request rejected", fields)
		return &errs.Error{
			Type:    errs.ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

// splitWarnings separates the entries of the error array. Kraken prefixes
// errors with E and warnings with W.
func splitWarnings(messages []string) (errorsOnly, warnings []string) {
	for _, m := range messages {
		if strings.HasPrefix(m, "W") {
			warnings = append(warnings, m)
		} else {
			errorsOnly = append(errorsOnly, m)
		}
	}
	return errorsOnly, warnings
}

// apiError classifies the error strings of a response without a result.
// Kraken prefixes errors with a category (EAPI, EQuery, EGeneral, EService).
func apiError(messages []string) *errs.Error {
	errorsOnly, _ := splitWarnings(messages)
	if len(errorsOnly) == 0 {
		return &errs.Error{
			Type:    errs.ErrorTypeMissingResult,
			Message: "response has no result",
		}
	}

	msg := strings.Join(errorsOnly, "; ")
	first := errorsOnly[0]

	errorType := errs.ErrorTypeMissingResult
	switch {
	case strings.HasPrefix(first, "EGeneral:Too many requests"):
		errorType = errs.ErrorTypeRateLimit
	case strings.HasPrefix(first, "EGeneral:Internal error"):
		errorType = errs.ErrorTypeServerError
	case strings.HasPrefix(first, "EQuery:"),
		strings.HasPrefix(first, "EGeneral:Invalid arguments"),
		strings.HasPrefix(first, "EGeneral:Unknown method"),
		strings.HasPrefix(first, "EAPI:Invalid"):
		errorType = errs.ErrorTypeInvalidRequest
	}

	return &errs.Error{
		Type:    errorType,
		Message: msg,
	}
}
