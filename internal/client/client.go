// Package client is a REST client for a running predictor service, used by
// the CLI subcommands.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"laptop-price-predictor/internal/features"
	"laptop-price-predictor/internal/prediction"
	"laptop-price-predictor/internal/storage"
)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status     int
	Detail     string
	Violations []features.Violation
}

func (e *APIError) Error() string {
	if len(e.Violations) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("api: %d %s (%s)", e.Status, e.Detail, strings.Join(parts, "; "))
}

type errorBody struct {
	Detail     string               `json:"detail"`
	Violations []features.Violation `json:"violations"`
}

// Client talks to the predictor HTTP API.
type Client struct {
	base string
	rest *resty.Client
}

// New creates a client for the service at base, e.g. http://localhost:8000.
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

func (c *Client) url(path string) string {
	return c.base + path
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode(), Detail: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body.Detail != "" {
		apiErr.Detail = body.Detail
		apiErr.Violations = body.Violations
	}
	if apiErr.Status == 404 {
		return fmt.Errorf("%w: %w", ErrNotFound, apiErr)
	}
	return apiErr
}

// Predict requests a price for the given features.
func (c *Client) Predict(ctx context.Context, input map[string]any) (*prediction.Result, error) {
	result := &prediction.Result{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(input).
		SetResult(result).
		SetError(&errorBody{}).
		Post(c.url("/predict"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// History returns the most recent stored predictions.
func (c *Client) History(ctx context.Context, limit int) ([]storage.Record, error) {
	var records []storage.Record
	req := c.rest.R().SetContext(ctx).SetResult(&records).SetError(&errorBody{})
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	resp, err := req.Get(c.url("/predictions"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one stored prediction.
func (c *Client) Get(ctx context.Context, id string) (*storage.Record, error) {
	rec := &storage.Record{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(rec).
		SetError(&errorBody{}).
		Get(c.url("/predictions/{id}"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return rec, nil
}

// ClearCache empties the server's result cache.
func (c *Client) ClearCache(ctx context.Context) (string, error) {
	var body struct {
		Message string `json:"message"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&errorBody{}).
		Delete(c.url("/cache"))
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	return body.Message, nil
}

// Health returns the health document.
func (c *Client) Health(ctx context.Context) (map[string]interface{}, error) {
	health := map[string]interface{}{}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&health).
		SetError(&errorBody{}).
		Get(c.url("/health"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return health, nil
}

// Stats is the combined view of the admin statistics endpoints.
type Stats struct {
	Count     int                    `json:"total_predictions"`
	Price     storage.PriceStats     `json:"price"`
	Companies []storage.CompanyStats `json:"companies"`
}

// Stats fetches the admin aggregates.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var count struct {
		Total int `json:"total_predictions"`
	}
	resp, err := c.rest.R().SetContext(ctx).SetResult(&count).SetError(&errorBody{}).
		Get(c.url("/api/v1/admin/stats/count"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	stats.Count = count.Total

	resp, err = c.rest.R().SetContext(ctx).SetResult(&stats.Price).SetError(&errorBody{}).
		Get(c.url("/api/v1/admin/stats/price"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}

	resp, err = c.rest.R().SetContext(ctx).SetResult(&stats.Companies).SetError(&errorBody{}).
		Get(c.url("/api/v1/admin/stats/companies"))
	if err := checkResponse(resp, err); err != nil {
		return nil, err
	}
	return stats, nil
}

// Cleanup deletes predictions older than days and returns how many were removed.
func (c *Client) Cleanup(ctx context.Context, days int) (int, error) {
	var body struct {
		Deleted int `json:"deleted_count"`
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("days_old", strconv.Itoa(days)).
		SetResult(&body).
		SetError(&errorBody{}).
		Delete(c.url("/api/v1/admin/predictions/cleanup/old"))
	if err := checkResponse(resp, err); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}
