package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FloorClient talks to a running seatflow service.
type FloorClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewFloorClient(baseURL string) *FloorClient {
	return &FloorClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError is a non-2xx response decoded from the service error envelope.
type APIError struct {
	StatusCode int
	Code       string         `json:"code"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("seatflow: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	TotalCount *int            `json:"total_count,omitempty"`
}

func (c *FloorClient) DayView(ctx context.Context, date string, target any) error {
	return c.do(ctx, http.MethodGet, "/api/v1/days/"+url.PathEscape(date)+"/reservations", nil, target)
}

func (c *FloorClient) Adjustment(ctx context.Context, date, id string, target any) error {
	return c.do(ctx, http.MethodGet, adjustmentPath(date, id), nil, target)
}

func (c *FloorClient) PatchAdjustment(ctx context.Context, date, id string, patch, target any) error {
	return c.do(ctx, http.MethodPatch, adjustmentPath(date, id), patch, target)
}

func (c *FloorClient) Seat(ctx context.Context, kind, id string, target any) error {
	return c.do(ctx, http.MethodPost, reservationPath(kind, id, "seat"), nil, target)
}

func (c *FloorClient) Countdown(ctx context.Context, kind, id string, target any) error {
	return c.do(ctx, http.MethodGet, reservationPath(kind, id, "countdown"), nil, target)
}

func (c *FloorClient) Extend(ctx context.Context, kind, id string, target any) error {
	return c.do(ctx, http.MethodPost, reservationPath(kind, id, "extend"), nil, target)
}

func (c *FloorClient) Clear(ctx context.Context, kind, id string) error {
	return c.do(ctx, http.MethodPost, reservationPath(kind, id, "clear"), nil, nil)
}

func adjustmentPath(date, id string) string {
	return "/api/v1/adjustments/" + url.PathEscape(date) + "/" + url.PathEscape(id)
}

func reservationPath(kind, id, action string) string {
	return "/api/v1/reservations/" + url.PathEscape(kind) + "/" + url.PathEscape(id) + "/" + action
}

func (c *FloorClient) do(ctx context.Context, method, path string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func (c *FloorClient) WaitForHealthy(ctx context.Context, maxWait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("service did not become healthy within %v", maxWait)
		case <-ticker.C:
		}
	}
}
