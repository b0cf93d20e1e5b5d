// Meraki Mirror - Resilient Dashboard State Mirroring
// Copyright 2026 R. Knight (rknightion)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rknightion/merakimirror

/*
http.go - Dashboard HTTP Client

Thin HTTP implementation of the Client contract. Responsibilities end at the
wire: build the request, authenticate, drain pagination, decode JSON, and map
HTTP failures onto the typed error taxonomy. Retries, rate limiting, caching
and circuit breaking all live above this layer in the hub pipeline.

Request configuration:
  - Authentication: X-Cisco-Meraki-API-Key header on all requests
  - Accept: application/json on all requests
  - Pagination: perPage + startingAfter draining for list endpoints
  - Status mapping: 401/403 AuthError, 404 NotFoundError,
    429 RateLimitError (with Retry-After), 5xx ServerError
*/

package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const defaultPerPage = 1000

// HTTPClient implements Client against a dashboard-style REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	perPage int
}

// NewHTTPClient creates a dashboard API client. The timeout bounds each
// individual request; a deadline hit surfaces as a TimeoutError so the retry
// layer treats it as retryable.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		perPage: defaultPerPage,
	}
}

// requestConfig holds configuration for building HTTP requests
type requestConfig struct {
	method string
	path   string
	query  url.Values
}

// doRequest executes one API request and decodes the response into result.
func (c *HTTPClient) doRequest(ctx context.Context, cfg requestConfig, result interface{}) error {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, cfg.path)

	req, err := http.NewRequestWithContext(ctx, cfg.method, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("X-Cisco-Meraki-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	if len(cfg.query) > 0 {
		req.URL.RawQuery = cfg.query.Encode()
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, cfg.path); err != nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// checkStatus maps non-2xx responses onto the typed error taxonomy.
func checkStatus(resp *http.Response, resource string) error {
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: resource}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: parseRetryAfter(resp)}
	case resp.StatusCode >= 500:
		return &ServerError{Status: resp.StatusCode}
	default:
		return fmt.Errorf("dashboard: unexpected status: %d %s", resp.StatusCode, resp.Status)
	}
}

// parseRetryAfter reads the Retry-After header (RFC 6585, seconds form).
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

// deviceDTO is the wire shape of a device record.
type deviceDTO struct {
	Serial       string   `json:"serial"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
	NetworkID    string   `json:"networkId"`
	Capabilities []string `json:"capabilities"`
	Status       string   `json:"status"`
	LastSeen     string   `json:"lastReportedAt"`
}

// toDevice maps the wire record to the domain model. Devices from unknown
// product families are dropped by the caller (ok == false).
func (d deviceDTO) toDevice() (Device, bool) {
	t, ok := ParseDeviceType(d.Model)
	if !ok {
		return Device{}, false
	}
	dev := Device{
		Serial:       d.Serial,
		Model:        d.Model,
		Name:         d.Name,
		NetworkID:    d.NetworkID,
		Type:         t,
		Capabilities: d.Capabilities,
		Status:       DeviceStatus(d.Status),
	}
	if dev.Status == "" {
		dev.Status = StatusOffline
	}
	if ts, err := time.Parse(time.RFC3339, d.LastSeen); err == nil {
		dev.LastSeen = ts
	}
	return dev, true
}

// GetOrganization fetches the organization's identity.
func (c *HTTPClient) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var org Organization
	err := c.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/v1/organizations/%s", orgID),
	}, &org)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// GetNetworks lists all networks in the organization.
func (c *HTTPClient) GetNetworks(ctx context.Context, orgID string) ([]Network, error) {
	var networks []Network
	err := c.drainPages(ctx, fmt.Sprintf("/api/v1/organizations/%s/networks", orgID), func(body io.Reader) (int, string, error) {
		var page []Network
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, "", fmt.Errorf("decode response: %w", err)
		}
		networks = append(networks, page...)
		last := ""
		if len(page) > 0 {
			last = page[len(page)-1].ID
		}
		return len(page), last, nil
	})
	if err != nil {
		return nil, err
	}
	return networks, nil
}

// GetOrganizationDevices lists every device in the organization.
func (c *HTTPClient) GetOrganizationDevices(ctx context.Context, orgID string) ([]Device, error) {
	return c.devicePages(ctx, fmt.Sprintf("/api/v1/organizations/%s/devices", orgID))
}

// GetNetworkDevices lists the devices in one network.
func (c *HTTPClient) GetNetworkDevices(ctx context.Context, networkID string) ([]Device, error) {
	return c.devicePages(ctx, fmt.Sprintf("/api/v1/networks/%s/devices", networkID))
}

func (c *HTTPClient) devicePages(ctx context.Context, path string) ([]Device, error) {
	var devices []Device
	err := c.drainPages(ctx, path, func(body io.Reader) (int, string, error) {
		var page []deviceDTO
		if err := json.NewDecoder(body).Decode(&page); err != nil {
			return 0, "", fmt.Errorf("decode response: %w", err)
		}
		for _, dto := range page {
			if dev, ok := dto.toDevice(); ok {
				devices = append(devices, dev)
			}
		}
		last := ""
		if len(page) > 0 {
			last = page[len(page)-1].Serial
		}
		return len(page), last, nil
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// drainPages walks a paginated list endpoint until a short page signals the
// end. decodePage consumes one response body and returns the page length and
// the cursor for the next request.
func (c *HTTPClient) drainPages(ctx context.Context, path string, decodePage func(io.Reader) (int, string, error)) error {
	startingAfter := ""
	for {
		query := url.Values{}
		query.Set("perPage", strconv.Itoa(c.perPage))
		if startingAfter != "" {
			query.Set("startingAfter", startingAfter)
		}

		reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("X-Cisco-Meraki-API-Key", c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return wrapTransportError(err)
		}

		if err := checkStatus(resp, path); err != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return err
		}

		n, last, err := decodePage(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return err
		}

		if n < c.perPage || last == "" {
			return nil
		}
		startingAfter = last
	}
}

// readingDTO is the wire shape of a telemetry sample.
type readingDTO struct {
	Serial     string  `json:"serial"`
	Metric     string  `json:"metric"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	ReportedAt string  `json:"reportedAt"`
}

func (c *HTTPClient) telemetry(ctx context.Context, path string, serials []string) (map[string]Reading, error) {
	query := url.Values{}
	for _, s := range serials {
		query.Add("serials[]", s)
	}

	var page []readingDTO
	err := c.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   path,
		query:  query,
	}, &page)
	if err != nil {
		return nil, err
	}

	readings := make(map[string]Reading, len(page))
	for _, dto := range page {
		r := Reading{
			Serial: dto.Serial,
			Metric: dto.Metric,
			Value:  dto.Value,
			Unit:   dto.Unit,
		}
		if ts, err := time.Parse(time.RFC3339, dto.ReportedAt); err == nil {
			r.ReportedAt = ts
		}
		readings[dto.Serial] = r
	}
	return readings, nil
}

// GetSensorReadings fetches the latest environmental sensor samples (MT).
func (c *HTTPClient) GetSensorReadings(ctx context.Context, networkID string, serials []string) (map[string]Reading, error) {
	return c.telemetry(ctx, fmt.Sprintf("/api/v1/networks/%s/sensor/readings/latest", networkID), serials)
}

// GetWirelessStatuses fetches access point radio status (MR).
func (c *HTTPClient) GetWirelessStatuses(ctx context.Context, networkID string, serials []string) (map[string]Reading, error) {
	return c.telemetry(ctx, fmt.Sprintf("/api/v1/networks/%s/wireless/statuses", networkID), serials)
}

// GetSwitchPortStatuses fetches switch port counters (MS).
func (c *HTTPClient) GetSwitchPortStatuses(ctx context.Context, networkID string, serials []string) (map[string]Reading, error) {
	return c.telemetry(ctx, fmt.Sprintf("/api/v1/networks/%s/switch/ports/statuses", networkID), serials)
}

// GetCameraAnalytics fetches camera analytics zone counts (MV).
func (c *HTTPClient) GetCameraAnalytics(ctx context.Context, networkID string, serials []string) (map[string]Reading, error) {
	return c.telemetry(ctx, fmt.Sprintf("/api/v1/networks/%s/camera/analytics/live", networkID), serials)
}

// GetNetworkConfig fetches the configuration snapshot for one partition.
func (c *HTTPClient) GetNetworkConfig(ctx context.Context, networkID string, t DeviceType) (*ConfigSnapshot, error) {
	var settings map[string]string
	err := c.doRequest(ctx, requestConfig{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/v1/networks/%s/settings", networkID),
		query:  url.Values{"productType": []string{t.String()}},
	}, &settings)
	if err != nil {
		return nil, err
	}
	return &ConfigSnapshot{
		NetworkID: networkID,
		Type:      t,
		Settings:  settings,
		FetchedAt: time.Now().UTC(),
	}, nil
}

var _ Client = (*HTTPClient)(nil)
