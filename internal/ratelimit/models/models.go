package models

import (
	"strconv"
	"time"
)

// KeyPrefixIP scopes counters to a client IP address.
const KeyPrefixIP = "ip"

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set while counters come from the in-process fallback.
	Degraded bool `json:"-"`
}

// ExceededResponse is the API response when the limit is exceeded.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// NewWindowKey builds the counter key for identifier in the fixed window
// starting at windowStart. Each window gets its own key so stores only need
// increment and expiry.
func NewWindowKey(prefix, identifier string, windowStart time.Time) string {
	return "ratelimit:" + prefix + ":" + identifier + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}
