package coreapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRequestTimeout = 30 * time.Second

var (
	ErrForbidden       = errors.New("forbidden")
	ErrAccountDisabled = errors.New("user account is disabled")
	ErrNotFound        = errors.New("resource not found")
)

// StatusError is returned for any non-2xx response not mapped to a sentinel.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("core API returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("core API returned HTTP %d: %s", e.StatusCode, e.Message)
}

type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	IssueTimeout   time.Duration `mapstructure:"issue_timeout"`
	SubmitTimeout  time.Duration `mapstructure:"submit_timeout"`
}

// Client talks to the core admin API.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StartEnrollment issues a one-time enrollment token for the user.
func (c *Client) StartEnrollment(ctx context.Context, username string, notify bool) (*StartEnrollmentResponse, error) {
	var resp StartEnrollmentResponse
	path := "/api/v1/user/" + url.PathEscape(username) + "/start_enrollment"
	if err := c.do(ctx, http.MethodPost, path, StartEnrollmentRequest{SendEnrollmentNotification: notify}, &resp); err != nil {
		// The core API refuses enrollment for disabled accounts with 403.
		if errors.Is(err, ErrForbidden) {
			return nil, fmt.Errorf("%w: %w", ErrAccountDisabled, err)
		}
		return nil, err
	}
	if resp.EnrollmentToken == "" || resp.EnrollmentURL == "" {
		return nil, errors.New("core API returned an empty enrollment token or url")
	}
	return &resp, nil
}

func (c *Client) RecommendIPs(ctx context.Context, locationID int64) ([]IPRecommendation, error) {
	var resp []IPRecommendation
	if err := c.do(ctx, http.MethodGet, ipPath(locationID), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ValidateIPs(ctx context.Context, locationID int64, ips []string) ([]IPValidation, error) {
	var resp []IPValidation
	if err := c.do(ctx, http.MethodPost, ipPath(locationID), ValidateIPsRequest{IPs: ips}, &resp); err != nil {
		return nil, err
	}
	if len(resp) != len(ips) {
		return nil, fmt.Errorf("validation response has %d results for %d addresses", len(resp), len(ips))
	}
	return resp, nil
}

func (c *Client) AddDevice(ctx context.Context, username string, req AddDeviceRequest) (*AddDeviceResponse, error) {
	var resp AddDeviceResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/device/"+url.PathEscape(username), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListUserDevices(ctx context.Context, username string) ([]Device, error) {
	var resp []Device
	if err := c.do(ctx, http.MethodGet, "/api/v1/device/user/"+url.PathEscape(username), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func ipPath(locationID int64) string {
	return "/api/v1/device/network/ip/" + strconv.FormatInt(locationID, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach core API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	slog.Debug("Core API call", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, errorMessage(respBody))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if er.Msg != "" {
			return er.Msg
		}
		if er.Error != "" {
			return er.Error
		}
	}
	return strings.TrimSpace(string(body))
}
