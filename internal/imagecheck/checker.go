// Package imagecheck verifies that an image URL actually loads.
//
// The checker is a leaf primitive: one bounded attempt, a boolean answer,
// and no retries. Retry policy belongs to callers (the reconciler flags,
// the card resolver walks its fallback chain).
package imagecheck

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTimeout bounds a single check. An earlier revision of the site
// ran checks with no timeout at all, which could hang a whole refresh on
// one dead host; the bound is part of the contract now.
const DefaultTimeout = 5 * time.Second

// Checker reports whether image URLs are reachable.
type Checker struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a Checker with the given per-check timeout. A zero or
// negative timeout is coerced to DefaultTimeout.
func New(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Check reports whether the resource at rawURL loads within the timeout.
// It never returns an error: malformed URLs, network failures, timeouts,
// and non-2xx statuses all report false.
func (c *Checker) Check(ctx context.Context, rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if u, err := url.Parse(rawURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, retriable := c.attempt(ctx, http.MethodHead, rawURL)
	if ok {
		return true
	}
	if !retriable {
		return false
	}

	// Some hosts reject HEAD; one GET settles it.
	ok, _ = c.attempt(ctx, http.MethodGet, rawURL)
	return ok
}

// attempt makes a single request. The second return value reports whether
// a GET might still succeed (HEAD not allowed or not implemented).
func (c *Checker) attempt(ctx context.Context, method, rawURL string) (ok, retriable bool) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false, false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("imagecheck: %s %s: %v", method, rawURL, err)
		return false, false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, false
	}
	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return false, method == http.MethodHead
	}
	return false, false
}

// IsImageContentType reports whether a MIME type is one of the accepted
// upload formats.
func IsImageContentType(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
