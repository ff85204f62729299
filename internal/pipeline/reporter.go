package pipeline

import (
	"context"

	"github.com/samvad-hq/samvad-media-relay/internal/domain"
)

// Result is the composed final message for a successful run: a text body and
// the ordered transcoded attachments.
type Result struct {
	Body        string
	Attachments []domain.TranscodedImage
}

// Reporter is the pipeline's channel back to the requester. Implementations
// live in the front-end (CLI, chat transport); the pipeline only guarantees
// that exactly one terminal call (PublishResult or PublishFailure) happens
// per run, and that a shown progress indicator is retracted first.
//
// PublishResult returns ErrPayloadTooLarge when the transport rejects the
// message as oversized, which the pipeline reports as a distinct outcome.
type Reporter interface {
	// Begin creates the progress indicator announcing total items.
	Begin(ctx context.Context, total int) error
	// PublishProgress pushes a snapshot after each completed item.
	PublishProgress(ctx context.Context, completed, total int) error
	// PublishResult publishes the final composed message.
	PublishResult(ctx context.Context, result *Result) error
	// PublishFailure publishes a terminal failure with requester-facing detail.
	PublishFailure(ctx context.Context, kind FailureKind, detail string) error
	// RetractProgress removes the progress indicator. Idempotent; callers
	// tolerate failures.
	RetractProgress(ctx context.Context) error
}
