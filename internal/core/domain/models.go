package domain

import "time"

// JobStatus is the closed set of states a remote job can be in.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further state transition can occur.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job represents one stem-separation request accepted by this service.
type Job struct {
	ID        string    `json:"job_id"`
	SourceURL string    `json:"source_url"`
	CreatedAt time.Time `json:"created_at"`
}

// JobHandle is the freshest snapshot of a submitted remote job. It is
// replaced wholesale on every poll, never patched field by field, and
// discarded once a terminal status is observed.
type JobHandle struct {
	RemoteID string
	Status   JobStatus
	// PollURL is the status query endpoint for this job. It may be absent
	// on a response; that is a protocol failure when the job is still
	// non-terminal.
	PollURL string
	// Output is the raw decoded output value of a succeeded job: a string
	// URL, or arbitrarily nested sequences/mappings whose leaves are URLs.
	Output any
	// RemoteError carries the remote service's own failure message, if any.
	RemoteError string
}

// OutputArtifact is one fetchable leaf result of a succeeded job. It lives
// only for the fetch-and-bundle phase and is never persisted.
type OutputArtifact struct {
	SourceURL string
	Name      string
}

// Bundle is the single archive returned for one job.
type Bundle struct {
	Filename    string
	ContentType string
	Content     []byte
}
