package testutil

import (
	"net/http"

	"idcheck/pkg/requestcontext"
)

// WithRequestID attaches a request ID the way the request middleware does.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithClientIP attaches client metadata the way the metadata middleware does.
func WithClientIP(req *http.Request, ip string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, req.UserAgent()))
}
