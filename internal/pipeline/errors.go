package pipeline

import (
	"errors"
	"fmt"

	"github.com/samvad-hq/samvad-media-relay/internal/transcode"
	"github.com/samvad-hq/samvad-media-relay/pkg/platforms"
)

// FailureKind names the terminal failure categories a run can surface.
type FailureKind string

const (
	FailureUnsupportedPlatform FailureKind = "unsupported_platform"
	FailureUpstreamFetch       FailureKind = "upstream_fetch"
	FailureNoMediaFound        FailureKind = "no_media_found"
	FailureDownload            FailureKind = "download_failure"
	FailureDecode              FailureKind = "decode_error"
	FailureEncode              FailureKind = "encode_error"
	FailurePayloadTooLarge     FailureKind = "payload_too_large"
	FailureUnknown             FailureKind = "unknown"
)

// Informational reports whether the failure is an expected, non-alarming
// outcome that front-ends should render without alert styling.
func (k FailureKind) Informational() bool {
	return k == FailureUnsupportedPlatform || k == FailureNoMediaFound
}

// ErrNoMediaFound is returned when a post exists but carries no usable image
// attachments (e.g. a video-only post; videos are unsupported).
var ErrNoMediaFound = errors.New("post has no usable image attachments")

// ErrPayloadTooLarge is the sentinel a Reporter returns from PublishResult
// when the transport rejects the composed message as exceeding its upload
// limit. The requester should retry at a lower quality tier.
var ErrPayloadTooLarge = errors.New("composed result exceeds the transport upload limit")

// UpstreamFetchError wraps an adapter failure while fetching the post.
type UpstreamFetchError struct {
	Err error
}

func (e *UpstreamFetchError) Error() string { return fmt.Sprintf("upstream fetch: %v", e.Err) }
func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// DownloadFailureError reports a non-2xx status while downloading one media item.
type DownloadFailureError struct {
	URL    string
	Status int
}

func (e *DownloadFailureError) Error() string {
	return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
}

// classifyFailure maps a terminal error to its kind and the human-readable
// detail shown to the requester. Operators get the full error via logs.
func classifyFailure(err error) (FailureKind, string) {
	var unsupported *platforms.UnsupportedError
	if errors.As(err, &unsupported) {
		return FailureUnsupportedPlatform,
			fmt.Sprintf("The domain %q is currently not supported.", unsupported.Domain)
	}

	var fetchErr *UpstreamFetchError
	if errors.As(err, &fetchErr) {
		return FailureUpstreamFetch,
			fmt.Sprintf("The post could not be fetched from the platform: %v", fetchErr.Err)
	}

	if errors.Is(err, ErrNoMediaFound) {
		return FailureNoMediaFound,
			"The post had no media attached, or it was in an unsupported format. Videos are not supported."
	}

	var dlErr *DownloadFailureError
	if errors.As(err, &dlErr) {
		return FailureDownload,
			fmt.Sprintf("Downloading an attachment failed with status %d.", dlErr.Status)
	}

	var decodeErr *transcode.DecodeError
	if errors.As(err, &decodeErr) {
		return FailureDecode,
			"An attachment could not be decoded as an image."
	}

	var encodeErr *transcode.EncodeError
	if errors.As(err, &encodeErr) {
		return FailureEncode,
			"Re-encoding an attachment failed unexpectedly."
	}

	if errors.Is(err, ErrPayloadTooLarge) {
		return FailurePayloadTooLarge,
			"The attachments exceed the upload limit. Retry with a lower quality tier."
	}

	return FailureUnknown,
		fmt.Sprintf("While processing the request, the following error occurred: %v", err)
}
