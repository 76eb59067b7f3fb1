package providers

import "errors"

// Terminal fetch outcomes. Transient causes (timeouts, 5xx, 403, 429) are
// retried internally and never surface mid-retry; only these escape.
var (
	// ErrNoProxyAvailable means the proxy pool is empty.
	ErrNoProxyAvailable = errors.New("no proxy available")

	// ErrNotFound maps an upstream 404. Callers treat it as an empty
	// result, never as a retryable fault.
	ErrNotFound = errors.New("resource not found upstream")

	// ErrInvalidPayload means the upstream returned 200 with a body that
	// is not valid JSON. A malformed 200 is not considered transient.
	ErrInvalidPayload = errors.New("unparsable upstream response body")

	// ErrExhaustedRetries means every configured attempt was consumed.
	ErrExhaustedRetries = errors.New("all fetch attempts exhausted")
)
