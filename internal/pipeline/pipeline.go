package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/samvad-media-relay/internal/domain"
	"github.com/samvad-hq/samvad-media-relay/internal/logger"
	"github.com/samvad-hq/samvad-media-relay/internal/transcode"
	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-media-relay/pkg/platforms"
)

// RunStatus is the pipeline state machine position. Transitions are strictly
// forward; Enumerating onward may be skipped only by failing.
type RunStatus string

const (
	StatusFetching    RunStatus = "fetching"
	StatusEnumerating RunStatus = "enumerating"
	StatusConverting  RunStatus = "converting"
	StatusFinalizing  RunStatus = "finalizing"
	StatusSucceeded   RunStatus = "succeeded"
	StatusFailed      RunStatus = "failed"
)

var statusOrder = map[RunStatus]int{
	StatusFetching:    0,
	StatusEnumerating: 1,
	StatusConverting:  2,
	StatusFinalizing:  3,
	StatusSucceeded:   4,
	StatusFailed:      4,
}

// Request describes one submitted ingestion.
type Request struct {
	RequestID    string
	URL          string
	Note         string
	IncludeTitle bool
	Quality      domain.QualityLevel
}

// Run is the ephemeral per-invocation record. It is owned by the invocation
// that created it and never shared across requests.
type Run struct {
	RequestID      string
	Post           *domain.Post
	TotalItems     int
	CompletedItems int
	Outputs        []domain.TranscodedImage
	Status         RunStatus
	FailureKind    FailureKind
	StartedAt      time.Time
	Elapsed        time.Duration

	progressShown bool
}

// advance moves the run status forward; backward transitions are ignored.
func (r *Run) advance(next RunStatus) {
	if statusOrder[next] > statusOrder[r.Status] {
		r.Status = next
	}
}

// AuthorPlaceholder is rendered when the upstream post is author-deleted.
const AuthorPlaceholder = "Author not found"

// Service orchestrates one ingestion run: resolve platform, fetch post,
// enumerate media, download and transcode sequentially with progress
// reporting, then assemble the result. Cleanup of the progress indicator is
// guaranteed on every exit path.
type Service struct {
	resolver   *platforms.Resolver
	downloader *Downloader
	transcoder transcode.Transcoder
}

// NewService wires a pipeline over the given resolver and HTTP client.
func NewService(resolver *platforms.Resolver, client httpclient.Client, transcoder transcode.Transcoder) *Service {
	if transcoder == nil {
		transcoder = transcode.NewJPEG()
	}
	return &Service{
		resolver:   resolver,
		downloader: NewDownloader(client),
		transcoder: transcoder,
	}
}

// Run executes a single ingestion to completion or failure. Exactly one
// terminal Reporter call is made; the returned error is the terminal
// failure, nil on success. The returned Run is always non-nil.
func (s *Service) Run(ctx context.Context, req Request, rep Reporter) (*Run, error) {
	run := &Run{
		RequestID: req.RequestID,
		Status:    StatusFetching,
		StartedAt: time.Now(),
	}
	defer func() { run.Elapsed = time.Since(run.StartedAt) }()

	result, err := s.execute(ctx, req, run, rep)
	if err != nil {
		s.fail(ctx, run, rep, err)
		return run, err
	}

	// Success path: retract the indicator before publishing the result.
	s.retract(ctx, run, rep)
	if perr := rep.PublishResult(ctx, result); perr != nil {
		if errors.Is(perr, ErrPayloadTooLarge) {
			s.fail(ctx, run, rep, perr)
			return run, perr
		}
		wrapped := fmt.Errorf("publish result: %w", perr)
		s.fail(ctx, run, rep, wrapped)
		return run, wrapped
	}

	run.advance(StatusSucceeded)
	logger.InfoObj("ingestion run succeeded", "run_result", map[string]any{
		"request_id": run.RequestID,
		"items":      run.CompletedItems,
		"elapsed_ms": time.Since(run.StartedAt).Milliseconds(),
	})
	return run, nil
}

// execute walks the state machine up to the composed result. Failures at any
// state return an error from the taxonomy; the caller owns cleanup.
func (s *Service) execute(ctx context.Context, req Request, run *Run, rep Reporter) (*Result, error) {
	adapter, err := s.resolver.Resolve(req.URL)
	if err != nil {
		return nil, err
	}

	post, err := adapter.Fetch(ctx, req.URL)
	if err != nil {
		return nil, &UpstreamFetchError{Err: err}
	}
	run.Post = post

	run.advance(StatusEnumerating)
	refs := post.MediaRefs
	if len(refs) == 0 {
		return nil, ErrNoMediaFound
	}
	run.TotalItems = len(refs)
	logger.DebugObj("media enumeration complete", "enumeration", map[string]any{
		"request_id": run.RequestID,
		"items":      run.TotalItems,
	})

	run.advance(StatusConverting)
	if err := rep.Begin(ctx, run.TotalItems); err != nil {
		return nil, fmt.Errorf("announce progress indicator: %w", err)
	}
	run.progressShown = true

	// Strictly ordinal order, one item at a time: keeps reported progress
	// monotonic and limits upstream load to one in-flight request.
	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run cancelled: %w", ctx.Err())
		default:
		}

		raw, err := s.downloader.Download(ctx, ref.URL)
		if err != nil {
			return nil, err
		}

		encoded, err := s.transcoder.Transcode(raw, req.Quality.Value())
		if err != nil {
			return nil, err
		}

		run.Outputs = append(run.Outputs, domain.TranscodedImage{
			Ordinal:  ref.Ordinal,
			Bytes:    encoded,
			Filename: domain.AttachmentFilename(ref.Ordinal, transcode.OutputExtension),
		})
		run.CompletedItems++

		// Snapshot goes out before the next item starts.
		if err := rep.PublishProgress(ctx, run.CompletedItems, run.TotalItems); err != nil {
			return nil, fmt.Errorf("publish progress snapshot: %w", err)
		}
	}

	run.advance(StatusFinalizing)
	return composeResult(req, post, run.Outputs), nil
}

// fail terminates the run: best-effort indicator retraction first, then
// exactly one failure publication. Retraction errors never mask the
// original failure.
func (s *Service) fail(ctx context.Context, run *Run, rep Reporter, cause error) {
	run.Status = StatusFailed
	kind, detail := classifyFailure(cause)
	run.FailureKind = kind

	// Cleanup still runs when the inbound context is already cancelled.
	ctx = context.WithoutCancel(ctx)
	s.retract(ctx, run, rep)

	if !kind.Informational() {
		logger.ErrorObj("ingestion run failed", "run_failure", map[string]any{
			"request_id": run.RequestID,
			"kind":       string(kind),
			"error":      cause.Error(),
		})
	} else {
		logger.InfoObj("ingestion run ended without result", "run_outcome", map[string]any{
			"request_id": run.RequestID,
			"kind":       string(kind),
		})
	}

	if perr := rep.PublishFailure(ctx, kind, detail); perr != nil {
		logger.ErrorObj("failure publication failed", "publish_error", map[string]any{
			"request_id": run.RequestID,
			"error":      perr.Error(),
		})
	}
}

// retract removes the progress indicator if one was shown. Best-effort: the
// indicator may already be gone, which is fine.
func (s *Service) retract(ctx context.Context, run *Run, rep Reporter) {
	if !run.progressShown {
		return
	}
	run.progressShown = false
	if err := rep.RetractProgress(ctx); err != nil {
		logger.DebugObj("progress indicator retraction failed", "cleanup", map[string]any{
			"request_id": run.RequestID,
			"error":      err.Error(),
		})
	}
}

// composeResult builds the final message body: a byline referencing the
// author, optionally the post title, optionally the caller's note, plus the
// ordered attachments.
func composeResult(req Request, post *domain.Post, outputs []domain.TranscodedImage) *Result {
	author := post.Author
	if author == "" {
		author = AuthorPlaceholder
	}

	body := fmt.Sprintf("© [%s](%s)", author, post.SourceURL)
	if req.IncludeTitle && post.Title != "" {
		body += "\n# " + post.Title
	}
	if req.Note != "" {
		body += "\n> " + req.Note
	}

	return &Result{Body: body, Attachments: outputs}
}
