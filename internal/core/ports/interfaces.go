package ports

import (
	"context"
	"io"

	"stemsplit/internal/core/domain"
)

// Runner defines the contract for the remote asynchronous job API.
type Runner interface {
	// Submit creates one remote job for the given source audio URL and
	// returns the initial handle reported by the service.
	Submit(ctx context.Context, sourceURL string) (domain.JobHandle, error)

	// Poll re-queries the job's status endpoint and returns a fresh
	// handle. The previous handle must be discarded by the caller.
	Poll(ctx context.Context, pollURL string) (domain.JobHandle, error)
}

// Fetcher defines the contract for downloading artifact bytes.
type Fetcher interface {
	// Fetch performs one GET of the URL and returns the body and its
	// content type. A non-2xx response is an error, never a partial read.
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Storage defines the contract for persisting job artifacts.
type Storage interface {
	// InitJob prepares the storage location for a job.
	InitJob(ctx context.Context, jobID string) error

	// SaveInput records the job input metadata (URL, timestamp, etc.).
	SaveInput(ctx context.Context, jobID string, data []byte) error

	// SaveBundle persists the result bundle under the given filename and
	// returns an addressable location for it.
	SaveBundle(ctx context.Context, jobID string, r io.Reader, filename string) (string, error)
}
