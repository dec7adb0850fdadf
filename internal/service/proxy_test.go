package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"stemsplit/internal/core/domain"
)

type pollResult struct {
	handle domain.JobHandle
	err    error
}

type fakeRunner struct {
	submitHandle domain.JobHandle
	submitErr    error
	submitCalls  int

	polls     []pollResult
	pollCalls int
}

func (f *fakeRunner) Submit(ctx context.Context, sourceURL string) (domain.JobHandle, error) {
	f.submitCalls++
	return f.submitHandle, f.submitErr
}

func (f *fakeRunner) Poll(ctx context.Context, pollURL string) (domain.JobHandle, error) {
	i := f.pollCalls
	f.pollCalls++
	if i >= len(f.polls) {
		i = len(f.polls) - 1
	}
	return f.polls[i].handle, f.polls[i].err
}

type fetchResponse struct {
	data []byte
	ct   string
	err  error
}

type fakeFetcher struct {
	responses map[string]fetchResponse
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	r, ok := f.responses[url]
	if !ok {
		return nil, "", &domain.FetchError{URL: url, StatusCode: 404}
	}
	return r.data, r.ct, r.err
}

// newTestProxy wires a proxy with a simulated clock: every sleep advances
// virtual time by the requested duration, so poll timing runs instantly.
func newTestProxy(runner *fakeRunner, fetch *fakeFetcher) *Proxy {
	p := NewProxy(runner, fetch, 3*time.Second, 120*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Unix(0, 0)
	p.now = func() time.Time { return now }
	p.sleep = func(ctx context.Context, d time.Duration) error {
		now = now.Add(d)
		return nil
	}
	return p
}

func pending(pollURL string) domain.JobHandle {
	return domain.JobHandle{RemoteID: "r1", Status: domain.StatusPending, PollURL: pollURL}
}

func running(pollURL string) pollResult {
	return pollResult{handle: domain.JobHandle{RemoteID: "r1", Status: domain.StatusRunning, PollURL: pollURL}}
}

func succeeded(output any) pollResult {
	return pollResult{handle: domain.JobHandle{RemoteID: "r1", Status: domain.StatusSucceeded, Output: output}}
}

func unzip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("bundle is not a readable zip: %v", err)
	}
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func TestSplitRejectsRelativeURL(t *testing.T) {
	runner := &fakeRunner{}
	p := newTestProxy(runner, &fakeFetcher{})

	_, err := p.Split(context.Background(), "not-a-url")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if runner.submitCalls != 0 {
		t.Fatal("no network call may happen for invalid input")
	}
}

func TestSplitPropagatesSubmitStatusCode(t *testing.T) {
	runner := &fakeRunner{
		submitErr: &domain.RemoteAPIError{Op: "submit", StatusCode: 422, Body: "bad input"},
	}
	p := newTestProxy(runner, &fakeFetcher{})

	_, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	var rerr *domain.RemoteAPIError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RemoteAPIError, got %v", err)
	}
	if rerr.StatusCode != 422 {
		t.Fatalf("expected remote status 422, got %d", rerr.StatusCode)
	}
}

func TestPollStopsAtTerminalState(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: pending("https://api/poll"),
		polls: []pollResult{
			running("https://api/poll"),
			running("https://api/poll"),
			succeeded(map[string]any{"vocals": "https://x/a.wav"}),
		},
	}
	fetch := &fakeFetcher{responses: map[string]fetchResponse{
		"https://x/a.wav": {data: []byte("aaa"), ct: "audio/wav"},
	}}
	p := newTestProxy(runner, fetch)

	result, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	// three non-terminal observations (pending, running, running) mean
	// exactly three polls; none after the terminal state
	if runner.pollCalls != 3 {
		t.Fatalf("expected exactly 3 polls, got %d", runner.pollCalls)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatal("expected a bundle")
	}
}

func TestPollDeadlineReturnsTimeout(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: pending("https://api/poll"),
		polls:        []pollResult{running("https://api/poll")},
	}
	p := newTestProxy(runner, &fakeFetcher{})

	_, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	var terr *domain.TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	// 3s interval against a 120s ceiling: elapsed exceeds the deadline
	// after 41 polls, and no poll is issued once the check fails
	if runner.pollCalls != 41 {
		t.Fatalf("expected 41 polls before the deadline, got %d", runner.pollCalls)
	}
}

func TestMissingPollURLIsProtocolError(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: domain.JobHandle{RemoteID: "r1", Status: domain.StatusPending},
	}
	p := newTestProxy(runner, &fakeFetcher{})

	_, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	var perr *domain.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if runner.pollCalls != 0 {
		t.Fatal("cannot poll without a status query URL")
	}
}

func TestEmptyOutputIsProtocolError(t *testing.T) {
	for _, output := range []any{nil, map[string]any{}} {
		runner := &fakeRunner{
			submitHandle: domain.JobHandle{RemoteID: "r1", Status: domain.StatusSucceeded, Output: output},
		}
		p := newTestProxy(runner, &fakeFetcher{})

		_, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
		var perr *domain.ProtocolError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ProtocolError for output %#v, got %v", output, err)
		}
		if runner.pollCalls != 0 {
			t.Fatal("terminal state at submission must not be re-polled")
		}
	}
}

func TestSingleURLRoundTrip(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: domain.JobHandle{
			RemoteID: "r1",
			Status:   domain.StatusSucceeded,
			Output:   "https://x/out/mix final.wav",
		},
	}
	fetch := &fakeFetcher{responses: map[string]fetchResponse{
		"https://x/out/mix final.wav": {data: []byte("abc"), ct: "audio/wav"},
	}}
	p := newTestProxy(runner, fetch)

	result, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	entries := unzip(t, result.Content)
	if len(entries) != 1 {
		t.Fatalf("expected one file, got %d", len(entries))
	}
	if !bytes.Equal(entries["mix_final.wav"], []byte("abc")) {
		t.Fatalf("unexpected bundle entries: %v", entries)
	}
	if result.ContentType != "application/zip" {
		t.Fatalf("unexpected content type %s", result.ContentType)
	}
}

func TestSingleArchiveOutputShortCircuits(t *testing.T) {
	archive := []byte("PK\x03\x04 pretend archive bytes")
	runner := &fakeRunner{
		submitHandle: domain.JobHandle{
			RemoteID: "r1",
			Status:   domain.StatusSucceeded,
			Output:   "https://x/out/stems.zip",
		},
	}
	fetch := &fakeFetcher{responses: map[string]fetchResponse{
		"https://x/out/stems.zip": {data: archive, ct: "application/zip"},
	}}
	p := newTestProxy(runner, fetch)

	result, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if !bytes.Equal(result.Content, archive) {
		t.Fatal("archive output must be returned verbatim, not re-wrapped")
	}
	if result.Filename != "stems.zip" {
		t.Fatalf("unexpected filename %s", result.Filename)
	}
}

func TestNestedMappingBundle(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: domain.JobHandle{
			RemoteID: "r1",
			Status:   domain.StatusSucceeded,
			Output: map[string]any{
				"vocals": "https://x/a.wav",
				"drums":  "https://x/b.wav",
			},
		},
	}
	fetch := &fakeFetcher{responses: map[string]fetchResponse{
		"https://x/a.wav": {data: []byte("vocals-bytes"), ct: "audio/wav"},
		"https://x/b.wav": {data: []byte("drums-bytes"), ct: "audio/wav"},
	}}
	p := newTestProxy(runner, fetch)

	result, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	entries := unzip(t, result.Content)
	if len(entries) != 2 {
		t.Fatalf("expected two files, got %d", len(entries))
	}
	if !bytes.Equal(entries["a.wav"], []byte("vocals-bytes")) {
		t.Fatalf("a.wav content mismatch")
	}
	if !bytes.Equal(entries["b.wav"], []byte("drums-bytes")) {
		t.Fatalf("b.wav content mismatch")
	}
}

func TestSingleFailedFetchFailsWholeBundle(t *testing.T) {
	runner := &fakeRunner{
		submitHandle: domain.JobHandle{
			RemoteID: "r1",
			Status:   domain.StatusSucceeded,
			Output: map[string]any{
				"vocals": "https://x/a.wav",
				"drums":  "https://x/missing.wav",
			},
		},
	}
	fetch := &fakeFetcher{responses: map[string]fetchResponse{
		"https://x/a.wav": {data: []byte("ok"), ct: "audio/wav"},
	}}
	p := newTestProxy(runner, fetch)

	result, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
	var ferr *domain.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if result != nil {
		t.Fatal("no partial bundle may be returned")
	}
}

func TestRemotelyFailedJob(t *testing.T) {
	for _, status := range []domain.JobStatus{domain.StatusFailed, domain.StatusCanceled} {
		runner := &fakeRunner{
			submitHandle: domain.JobHandle{RemoteID: "r1", Status: status, RemoteError: "model blew up"},
		}
		p := newTestProxy(runner, &fakeFetcher{})

		_, err := p.Split(context.Background(), "https://cdn.example.com/track.mp3")
		var rerr *domain.RemoteAPIError
		if !errors.As(err, &rerr) {
			t.Fatalf("expected RemoteAPIError for %s, got %v", status, err)
		}
		if rerr.StatusCode != 0 {
			t.Fatalf("job-level failure carries no HTTP status, got %d", rerr.StatusCode)
		}
	}
}
