package platforms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-media-relay/internal/domain"
	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-media-relay/pkg/ratewindow"
	"golang.org/x/time/rate"
)

const (
	// RedditDomain is the registrable domain the resolver maps to this adapter.
	RedditDomain = "reddit.com"

	redditImageHost = "https://i.redd.it"

	// defaultRequestInterval keeps a safe buffer under Reddit's rate limits.
	defaultRequestInterval = time.Second
)

// Reddit client modes, mirroring the credentials the operator has available.
const (
	RedditModeAPI    = "api"
	RedditModePublic = "public"
)

// RedditConfig carries adapter construction settings. Credentials are only
// required for RedditModeAPI.
type RedditConfig struct {
	Mode            string
	ClientID        string
	ClientSecret    string
	Username        string
	Password        string
	UserAgent       string
	RequestInterval time.Duration
	RateRetention   time.Duration
}

// redditClient is the internal upstream surface both client modes implement.
type redditClient interface {
	fetchPost(ctx context.Context, postURL string) (*redditPost, error)
}

// redditPost is the raw upstream record before normalization.
type redditPost struct {
	ID           string
	Title        string
	Author       string
	URL          string
	GalleryItems []redditGalleryItem
}

// redditGalleryItem is one gallery entry in declared order.
type redditGalleryItem struct {
	MediaID string
	MIME    string
}

// RedditAdapter satisfies Adapter for reddit.com posts. It composes an
// upstream client, a request limiter and a private rate window; every
// attempted fetch is counted before the upstream call resolves.
type RedditAdapter struct {
	client  redditClient
	limiter *rate.Limiter
	window  *ratewindow.Window
}

// NewRedditAdapter builds the adapter in the configured mode.
func NewRedditAdapter(cfg RedditConfig, client httpclient.Client) (*RedditAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("reddit adapter requires an http client")
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("reddit adapter requires a user agent")
	}

	interval := cfg.RequestInterval
	if interval <= 0 {
		interval = defaultRequestInterval
	}

	public := &publicRedditClient{http: client, userAgent: cfg.UserAgent}

	var upstream redditClient
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", RedditModePublic:
		upstream = public
	case RedditModeAPI:
		api, err := newAPIRedditClient(cfg, public)
		if err != nil {
			return nil, err
		}
		upstream = api
	default:
		return nil, fmt.Errorf("unknown reddit mode %q (use %q or %q)", cfg.Mode, RedditModeAPI, RedditModePublic)
	}

	return &RedditAdapter{
		client:  upstream,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		window:  ratewindow.New(cfg.RateRetention),
	}, nil
}

// Platform identifies the adapter's platform.
func (a *RedditAdapter) Platform() domain.Platform { return domain.PlatformReddit }

// Fetch retrieves the post behind postURL and returns its normalized form.
// The rate window is incremented for every attempt, successful or not.
func (a *RedditAdapter) Fetch(ctx context.Context, postURL string) (*domain.Post, error) {
	a.window.Increment(1)

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("reddit request limiter: %w", err)
	}

	raw, err := a.client.fetchPost(ctx, postURL)
	if err != nil {
		return nil, fmt.Errorf("fetch reddit post: %w", err)
	}

	return &domain.Post{
		Platform:  domain.PlatformReddit,
		SourceURL: postURL,
		Author:    normalizeRedditAuthor(raw.Author),
		Title:     raw.Title,
		MediaRefs: enumerateMediaRefs(raw),
	}, nil
}

// Stats returns the adapter's request counters over the trailing
// 5/10/15-minute windows plus the all-time total.
func (a *RedditAdapter) Stats() RateStats {
	return RateStats{
		Total:   a.window.Total(),
		Last5m:  a.window.CountWindow(5 * time.Minute),
		Last10m: a.window.CountWindow(10 * time.Minute),
		Last15m: a.window.CountWindow(15 * time.Minute),
	}
}

// enumerateMediaRefs maps gallery entries to MediaRefs, filtering by the
// allowed image subtypes and reassigning gap-free ordinals. A non-gallery
// post contributes its direct URL as the sole ref regardless of extension.
func enumerateMediaRefs(p *redditPost) []domain.MediaRef {
	if len(p.GalleryItems) == 0 {
		return []domain.MediaRef{{URL: p.URL, Ordinal: 0}}
	}

	refs := make([]domain.MediaRef, 0, len(p.GalleryItems))
	for _, item := range p.GalleryItems {
		ext := mimeSubtype(item.MIME)
		if !domain.AllowedImageExtension(ext) {
			continue
		}
		refs = append(refs, domain.MediaRef{
			URL:     fmt.Sprintf("%s/%s.%s", redditImageHost, item.MediaID, ext),
			Ordinal: len(refs),
		})
	}
	return refs
}

// mimeSubtype extracts the subtype from a MIME string like "image/png".
func mimeSubtype(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return strings.ToLower(mime[i+1:])
	}
	return strings.ToLower(mime)
}

// normalizeRedditAuthor maps upstream deleted-author markers to an empty
// author, which callers render with a placeholder.
func normalizeRedditAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" || strings.EqualFold(author, "[deleted]") {
		return ""
	}
	return author
}
