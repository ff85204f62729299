package platforms

import (
	"context"

	"github.com/samvad-hq/samvad-media-relay/internal/domain"
)

// Adapter is the narrow capability contract a platform integration exposes
// to the pipeline: fetch one post by URL and report request-rate stats.
// Adapters compose their upstream client rather than extending it.
type Adapter interface {
	Platform() domain.Platform
	Fetch(ctx context.Context, postURL string) (*domain.Post, error)
	Stats() RateStats
}

// RateStats is a snapshot of an adapter's request counters, measured over
// attempted upstream calls (failed calls count too).
type RateStats struct {
	Total   int64 `json:"total"`
	Last5m  int   `json:"last_5m"`
	Last10m int   `json:"last_10m"`
	Last15m int   `json:"last_15m"`
}
