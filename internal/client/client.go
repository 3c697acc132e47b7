// Package client is a small HTTP client for the prediction service.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"smoking-predictor/internal/ml"
	"smoking-predictor/internal/survey"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
	Fields  []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("prediction service: %d %s", e.Status, e.Message)
}

type Client struct {
	base string
	rest *resty.Client
}

// New returns a client for the service at base, e.g. "http://localhost:8000".
func New(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// predictRequest is a RawRecord plus an optional caller-chosen request ID.
type predictRequest struct {
	survey.RawRecord
	RequestID string `json:"request_id,omitempty"`
}

// Predict posts record to /predict.
func (c *Client) Predict(ctx context.Context, record survey.RawRecord, requestID string) (*ml.PredictionResponse, error) {
	result := &ml.PredictionResponse{PredictionResult: &ml.PredictionResult{}}
	apiErr := &ml.ErrorResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(predictRequest{RawRecord: record, RequestID: requestID}).
		SetResult(result).
		SetError(apiErr).
		Post(c.base + "/predict")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	return result, nil
}

// GlobalImportance fetches the record-independent feature ranking.
func (c *Client) GlobalImportance(ctx context.Context) ([]ml.GlobalFeature, error) {
	var result []ml.GlobalFeature
	apiErr := &ml.ErrorResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(apiErr).
		Get(c.base + "/global-importance")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	return result, nil
}

// ModelInfo fetches metadata about the served model.
func (c *Client) ModelInfo(ctx context.Context) (*ml.ModelInfo, error) {
	result := &ml.ModelInfo{}
	apiErr := &ml.ErrorResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr).
		Get(c.base + "/model/info")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, toAPIError(resp, apiErr)
	}
	return result, nil
}

// Health reports the service health. A 503 is returned as the decoded body
// together with an *APIError.
func (c *Client) Health(ctx context.Context) (*ml.HealthResponse, error) {
	result := &ml.HealthResponse{}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		SetError(result).
		Get(c.base + "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return result, &APIError{Status: resp.StatusCode(), Message: orStatus(result.Error, resp)}
	}
	return result, nil
}

func toAPIError(resp *resty.Response, body *ml.ErrorResponse) *APIError {
	return &APIError{
		Status:  resp.StatusCode(),
		Message: orStatus(body.Error, resp),
		Fields:  body.Fields,
	}
}

func orStatus(msg string, resp *resty.Response) string {
	if msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode())
}
