// Package httputil holds small, dependency-free helpers around net/http
// shared by components that make outbound calls (the Update Installer).
package httputil

import (
	"net/http"
	"time"
)

// CopyHTTPClientWithTimeout returns a shallow copy of base with its
// Timeout set, never mutating the caller-provided instance. If base is
// nil, a new client is returned. If force is true, the timeout is set
// even when base.Timeout is already non-zero.
func CopyHTTPClientWithTimeout(base *http.Client, timeout time.Duration, force bool) *http.Client {
	if base == nil {
		return &http.Client{Timeout: timeout}
	}
	copied := *base
	if copied.Timeout == 0 || force {
		copied.Timeout = timeout
	}
	return &copied
}
