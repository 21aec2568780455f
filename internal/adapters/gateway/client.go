// Package gateway implements the remote store client over HTTP.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.trai.ch/zerr"

	"github.com/merchkit/storesync/internal/core/domain"
	"github.com/merchkit/storesync/internal/core/ports"
)

// Client implements ports.Gateway against the tenant data HTTP surface:
//
//	GET  /data/{tenant}/{kind}   -> {"data": T} or 404
//	PUT  /data/{tenant}/{kind}   <- {"data": T}
//	GET  /bootstrap/{tenant}     -> {"data": {kind: T, ...}}
//	GET  /secondary/{tenant}     -> {"data": {kind: T, ...}}
//
// The client is stateless and performs no retries; retry policy belongs to
// the refresh dispatcher and the persistence reconciler.
type Client struct {
	baseURL string
	http    *http.Client
}

var _ ports.Gateway = (*Client)(nil)

// NewClient creates a gateway client. The timeout bounds every request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type dataEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

type bundleEnvelope struct {
	Data  map[domain.Kind]json.RawMessage `json:"data"`
	Error string                          `json:"error,omitempty"`
}

// FetchEntity retrieves the current value of one kind for one tenant.
func (c *Client) FetchEntity(ctx context.Context, kind domain.Kind, tenantID string) (json.RawMessage, error) {
	body, err := c.get(ctx, c.entityURL(kind, tenantID))
	if err != nil {
		return nil, err
	}

	var envelope dataEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to decode entity response"), "kind", string(kind))
	}
	return envelope.Data, nil
}

// SaveEntity persists one value for one tenant.
func (c *Client) SaveEntity(ctx context.Context, kind domain.Kind, tenantID string, value json.RawMessage) error {
	payload, err := json.Marshal(dataEnvelope{Data: value})
	if err != nil {
		return zerr.Wrap(err, "failed to encode save payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.entityURL(kind, tenantID), bytes.NewReader(payload))
	if err != nil {
		return zerr.Wrap(err, "failed to build save request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return zerr.Wrap(domain.ErrNetwork, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return zerr.With(
			zerr.With(
				zerr.Wrap(domain.ErrValidation, c.serverMessage(resp.Body)),
				"kind", string(kind),
			),
			"status", resp.StatusCode,
		)
	default:
		return zerr.With(
			zerr.Wrap(domain.ErrNetwork, fmt.Sprintf("unexpected status %d", resp.StatusCode)),
			"kind", string(kind),
		)
	}
}

// Bootstrap fetches the primary bundle needed for first paint.
func (c *Client) Bootstrap(ctx context.Context, tenantID string) (domain.Bundle, error) {
	return c.bundle(ctx, "bootstrap", tenantID)
}

// SecondaryBootstrap fetches everything not needed above the fold.
func (c *Client) SecondaryBootstrap(ctx context.Context, tenantID string) (domain.Bundle, error) {
	return c.bundle(ctx, "secondary", tenantID)
}

func (c *Client) bundle(ctx context.Context, endpoint, tenantID string) (domain.Bundle, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/%s/%s", c.baseURL, endpoint, url.PathEscape(tenantID)))
	if err != nil {
		return domain.Bundle{}, err
	}

	var envelope bundleEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return domain.Bundle{}, zerr.Wrap(err, "failed to decode bundle response")
	}
	return domain.Bundle{TenantID: tenantID, Values: envelope.Data}, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrNetwork, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort close in defer

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, zerr.Wrap(domain.ErrNetwork, fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, zerr.Wrap(domain.ErrNetwork, err.Error())
	}
	return body, nil
}

func (c *Client) entityURL(kind domain.Kind, tenantID string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.baseURL, url.PathEscape(tenantID), url.PathEscape(string(kind)))
}

// serverMessage extracts the server's error string if the body carries one.
func (c *Client) serverMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "save rejected"
	}
	var envelope dataEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return envelope.Error
	}
	return "save rejected"
}
