package domain

import (
	"fmt"
	"time"
)

// ConfigError reports missing deployment configuration. It is fatal to a
// request and never retried.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Missing)
}

// ValidationError reports a malformed caller-supplied input, detected
// before any network call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

// RemoteAPIError reports a failure reported by the remote job API, either
// a non-success HTTP response (StatusCode > 0, Body verbatim) or a job
// that reached a failed/canceled terminal state (StatusCode == 0).
type RemoteAPIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteAPIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote API %s failed: status %d, body: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("remote job %s: %s", e.Op, e.Body)
}

// ProtocolError reports a remote response that violates the expected
// contract: missing id, missing poll reference while non-terminal,
// unrecognized status value, or unusable output. Retrying a malformed
// contract response is not expected to self-heal, so it is fatal.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("remote API protocol violation: %s", e.Reason)
}

// TimeoutError reports that the poll loop exceeded its wall-clock
// deadline. The caller may retry the whole operation; the proxy does not.
type TimeoutError struct {
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job did not finish within %s", e.Deadline)
}

// FetchError reports a failed artifact download. A single failed fetch
// fails the whole bundle.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching artifact %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetching artifact %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }
