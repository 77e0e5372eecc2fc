package github

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// rateInfo is what one response says about the quota
type rateInfo struct {
	known      bool
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// parseRateHeaders reads X-RateLimit-Remaining, X-RateLimit-Reset and
// Retry-After. A response without a remaining header leaves the quota unknown.
func parseRateHeaders(h http.Header, now time.Time) rateInfo {
	var ri rateInfo
	if s := strings.TrimSpace(h.Get("X-RateLimit-Remaining")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			ri.known = true
			ri.remaining = max(n, 0)
		}
	}
	if s := strings.TrimSpace(h.Get("X-RateLimit-Reset")); s != "" {
		if sec, err := strconv.ParseInt(s, 10, 64); err == nil && sec > 0 {
			ri.reset = time.Unix(sec, 0).UTC()
		}
	}
	ri.retryAfter = parseRetryAfter(h.Get("Retry-After"), now)
	return ri
}

// parseRetryAfter accepts delta seconds or an HTTP date
func parseRetryAfter(s string, now time.Time) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if sec, err := strconv.Atoi(s); err == nil {
		if sec <= 0 {
			return 0
		}
		return time.Duration(sec) * time.Second
	}
	if at, err := http.ParseTime(s); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// isThrottled reports a primary or secondary rate limit response. GitHub
// answers 403 for both exhausted quota and plain permission failures; only
// the former carries remaining=0 or Retry-After.
func isThrottled(status int, ri rateInfo) bool {
	switch status {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return (ri.known && ri.remaining == 0) || ri.retryAfter > 0
	}
	return false
}
