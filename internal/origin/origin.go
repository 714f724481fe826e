// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Meta carries response metadata alongside a fetched body.
type Meta struct {
	StatusCode   int
	ContentType  string
	ETag         string
	LastModified time.Time
	Source       string // scheme that served the fetch
}

// Origin fetches a payload by URL.
type Origin interface {
	Fetch(ctx context.Context, rawURL string, hdr http.Header) ([]byte, Meta, error)
	Schemes() []string
	String() string
}

// StatusError reports a non-2xx origin response. The request layer inspects
// Code to decide whether a retry can help.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin returned %d %s: %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Retryable reports whether the response class is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// Registry dispatches fetches to the Origin registered for the URL scheme.
type Registry struct {
	origins map[string]Origin
}

// NewRegistry builds an empty registry. Use Default for one preloaded with
// the standard https and s3 origins.
func NewRegistry() *Registry {
	return &Registry{origins: map[string]Origin{}}
}

// Default returns a registry with the https and s3 origins wired in.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewHTTPOrigin())
	r.Register(NewS3Origin())
	return r
}

// Register adds o under each scheme it claims. Later registrations win.
func (r *Registry) Register(o Origin) {
	for _, scheme := range o.Schemes() {
		r.origins[strings.ToLower(scheme)] = o
	}
}

// For resolves the Origin serving rawURL's scheme.
func (r *Registry) For(rawURL string) (Origin, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return nil, fmt.Errorf("url %q has no scheme", rawURL)
	}

	o, ok := r.origins[scheme]
	if !ok {
		return nil, fmt.Errorf("no origin registered for scheme %q", scheme)
	}
	return o, nil
}

// Fetch resolves and fetches in one step.
func (r *Registry) Fetch(ctx context.Context, rawURL string, hdr http.Header) ([]byte, Meta, error) {
	o, err := r.For(rawURL)
	if err != nil {
		return nil, Meta{}, err
	}
	return o.Fetch(ctx, rawURL, hdr)
}

// Schemes lists every registered scheme, sorted.
func (r *Registry) Schemes() []string {
	schemes := make([]string, 0, len(r.origins))
	for scheme := range r.origins {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}
