// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
)

const defaultUserAgent = "preheat"

// HTTPOption customizes an HTTPOrigin.
type HTTPOption func(*HTTPOrigin)

// WithHTTPClient swaps the underlying client, used by tests and by callers
// that need custom transports.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *HTTPOrigin) { o.client = c }
}

// WithToken sends a bearer token on every fetch.
func WithToken(token string) HTTPOption {
	return func(o *HTTPOrigin) { o.token = token }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(o *HTTPOrigin) { o.userAgent = ua }
}

// HTTPOrigin fetches payloads over http/https.
type HTTPOrigin struct {
	client    *http.Client
	token     string
	userAgent string
}

// NewHTTPOrigin builds an HTTPOrigin. Default behavior (no options) uses a
// shared client with sane timeouts and no auth.
func NewHTTPOrigin(opts ...HTTPOption) *HTTPOrigin {
	o := &HTTPOrigin{
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = &http.Client{
			Timeout: 30 * time.Second, //nolint:mnd
		}
	}
	return o
}

func (o *HTTPOrigin) Schemes() []string {
	return []string{"http", "https"}
}

func (o *HTTPOrigin) String() string {
	return "origin-http"
}

// Fetch GETs rawURL and returns the body. Non-2xx responses come back as a
// *StatusError so callers can tell a retryable 503 from a permanent 404.
func (o *HTTPOrigin) Fetch(ctx context.Context, rawURL string, hdr http.Header) ([]byte, Meta, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", "application/json")
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}
	for k, vals := range hdr {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	meta := Meta{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        strings.Trim(resp.Header.Get("ETag"), `"`),
		Source:      "https",
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, perr := http.ParseTime(lm); perr == nil {
			meta.LastModified = t
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, meta, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debugf("fetched %s (%d bytes)", rawURL, len(body))

	return body, meta, nil
}
