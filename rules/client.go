package rules

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/audos/intake/telemetry"
)

// Client is an HTTP client for the rules service.
//
// The zero value is not usable; construct with NewClient. All methods
// take a context and honor its cancellation and deadline.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client (e.g. for tests or
// custom transports).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the rules service at baseURL.
// The default HTTP client uses a 30 second timeout.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckField runs the live per-field check for a single value.
// field must use the service vocabulary; see invoice.WireName.
//
// A "fail" verdict is NOT an error: it comes back in the result. The
// error return covers transport failures and malformed responses only.
func (c *Client) CheckField(ctx context.Context, field string, value any) (*FieldCheckResult, error) {
	timer := telemetry.FromContext(ctx).Start(fmt.Sprintf("rules.check_field %s", field))
	defer timer.End()

	var result FieldCheckResult
	err := c.post(ctx, "/validate_field", FieldCheckRequest{Field: field, Value: value}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate submits the normalized invoice for full validation.
//
// A non-2xx response becomes a *RemoteError carrying the server's error
// message and details; network failures come back as plain errors.
func (c *Client) Validate(ctx context.Context, payload *InvoicePayload) (*ValidationReport, error) {
	timer := telemetry.FromContext(ctx).Start("rules.validate")
	defer timer.End()

	var report ValidationReport
	if err := c.post(ctx, "/manual-invoice/validate", payload, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Generate asks the service to render the invoice artifact (a PDF) for
// an already validated payload. The binary response is returned opaquely.
func (c *Client) Generate(ctx context.Context, payload *InvoicePayload) ([]byte, error) {
	timer := telemetry.FromContext(ctx).Start("rules.generate")
	defer timer.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/manual-invoice/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// post sends a JSON body and decodes a JSON answer into out.
func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// remoteError turns a non-2xx response into a *RemoteError, falling back
// to the HTTP status text when the body isn't the JSON error envelope.
func remoteError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var body ErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Message:    body.Error,
			Details:    body.Details,
		}
	}

	return &RemoteError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("rules service returned %s", resp.Status),
	}
}
