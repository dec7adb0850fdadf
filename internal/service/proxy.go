// Package service coordinates the split workflow: submit, poll to a
// terminal state under a wall-clock deadline, resolve the output shape,
// fetch every artifact, and package one flat archive.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"stemsplit/internal/bundle"
	"stemsplit/internal/core/domain"
	"stemsplit/internal/core/ports"
	"stemsplit/internal/observability"
)

// Proxy runs stem-separation jobs against the remote job API.
type Proxy struct {
	runner   ports.Runner
	fetcher  ports.Fetcher
	interval time.Duration
	deadline time.Duration
	logger   *slog.Logger

	// overridable in tests so poll timing can be simulated without real
	// delays
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewProxy creates a Proxy with the given poll interval and deadline.
func NewProxy(runner ports.Runner, fetcher ports.Fetcher, interval, deadline time.Duration, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		runner:   runner,
		fetcher:  fetcher,
		interval: interval,
		deadline: deadline,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Split runs one job end to end and returns its result bundle. Exactly one
// of bundle or error is produced; no partial results are ever exposed.
func (p *Proxy) Split(ctx context.Context, sourceURL string) (*domain.Bundle, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, &domain.ValidationError{Reason: "source must be an absolute URL"}
	}

	jobID := uuid.New().String()
	log := p.logger.With("job", jobID)

	ctx, span := observability.StartSpan(ctx, "split",
		attribute.String("job.id", jobID),
	)
	defer span.End()

	log.Info("submitting job", "source", sourceURL)
	handle, err := p.runner.Submit(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	log.Info("job submitted", "remote_id", handle.RemoteID, "status", handle.Status)

	handle, err = p.awaitTerminal(ctx, handle, log)
	if err != nil {
		return nil, err
	}

	switch handle.Status {
	case domain.StatusSucceeded:
		// fall through to artifact collection
	case domain.StatusFailed, domain.StatusCanceled:
		msg := handle.RemoteError
		if msg == "" {
			msg = fmt.Sprintf("job ended with status %s", handle.Status)
		}
		return nil, &domain.RemoteAPIError{Op: string(handle.Status), Body: msg}
	}

	return p.collect(ctx, jobID, handle.Output, log)
}

// awaitTerminal polls until the handle reaches a terminal status or the
// deadline expires. Polls are strictly sequential; each response replaces
// the handle wholesale. The deadline is a hard ceiling, not a backoff.
func (p *Proxy) awaitTerminal(ctx context.Context, handle domain.JobHandle, log *slog.Logger) (domain.JobHandle, error) {
	start := p.now()
	for !handle.Status.Terminal() {
		if p.now().Sub(start) > p.deadline {
			return handle, &domain.TimeoutError{Deadline: p.deadline}
		}
		if handle.PollURL == "" {
			return handle, &domain.ProtocolError{Reason: "non-terminal response carries no status query URL"}
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return handle, err
		}
		next, err := p.runner.Poll(ctx, handle.PollURL)
		if err != nil {
			return handle, err
		}
		handle = next
		log.Debug("polled job", "status", handle.Status)
	}
	return handle, nil
}

// collect resolves the raw output shape, fetches every artifact, and
// packages the bundle. A single failed fetch fails the whole operation.
func (p *Proxy) collect(ctx context.Context, jobID string, raw any, log *slog.Logger) (*domain.Bundle, error) {
	if s, ok := raw.(string); ok && s != "" {
		return p.collectSingle(ctx, jobID, s)
	}

	arts := domain.FlattenOutput(raw)
	if len(arts) == 0 {
		return nil, &domain.ProtocolError{Reason: "no usable output"}
	}
	log.Info("fetching artifacts", "count", len(arts))

	files := make([]bundle.File, len(arts))
	g, gctx := errgroup.WithContext(ctx)
	for i, art := range arts {
		i, art := i, art
		g.Go(func() error {
			data, _, err := p.fetcher.Fetch(gctx, art.SourceURL)
			if err != nil {
				return err
			}
			files[i] = bundle.File{Name: art.Name, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	content, err := bundle.Build(files)
	if err != nil {
		return nil, err
	}
	log.Info("bundle ready", "files", len(files), "bytes", len(content))

	return &domain.Bundle{
		Filename:    "stems-" + jobID + ".zip",
		ContentType: "application/zip",
		Content:     content,
	}, nil
}

// collectSingle handles a single-URL output. When the artifact is already
// an archive its bytes are returned verbatim to avoid double-wrapping.
func (p *Proxy) collectSingle(ctx context.Context, jobID, artifactURL string) (*domain.Bundle, error) {
	data, ct, err := p.fetcher.Fetch(ctx, artifactURL)
	if err != nil {
		return nil, err
	}

	name := domain.ArtifactName(artifactURL, "", 0)
	if domain.IsArchiveName(artifactURL) || domain.IsArchiveContentType(ct) || bundle.IsZip(data) {
		if !strings.HasSuffix(strings.ToLower(name), ".zip") {
			name = "stems-" + jobID + ".zip"
		}
		return &domain.Bundle{
			Filename:    name,
			ContentType: "application/zip",
			Content:     data,
		}, nil
	}

	content, err := bundle.Build([]bundle.File{{Name: name, Data: data}})
	if err != nil {
		return nil, err
	}
	return &domain.Bundle{
		Filename:    "stems-" + jobID + ".zip",
		ContentType: "application/zip",
		Content:     content,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
