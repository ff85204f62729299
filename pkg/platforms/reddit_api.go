package platforms

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/loganintech/go-reddit/v2/reddit"
)

// apiRedditClient reads posts through the authenticated Reddit API. The API
// post model carries no gallery media metadata, so gallery posts are
// supplemented through the public JSON client.
type apiRedditClient struct {
	api     *reddit.Client
	gallery *publicRedditClient
}

func newAPIRedditClient(cfg RedditConfig, gallery *publicRedditClient) (*apiRedditClient, error) {
	creds := reddit.Credentials{
		ID:       cfg.ClientID,
		Secret:   cfg.ClientSecret,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	client, err := reddit.NewClient(creds, reddit.WithUserAgent(cfg.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("create reddit api client: %w", err)
	}

	return &apiRedditClient{api: client, gallery: gallery}, nil
}

func (c *apiRedditClient) fetchPost(ctx context.Context, postURL string) (*redditPost, error) {
	id, err := redditPostID(postURL)
	if err != nil {
		return nil, err
	}

	pc, _, err := c.api.Post.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reddit api get post %s: %w", id, err)
	}
	if pc == nil || pc.Post == nil {
		return nil, fmt.Errorf("reddit api returned no post for %s", id)
	}

	p := pc.Post
	rp := &redditPost{
		ID:     p.ID,
		Title:  p.Title,
		Author: p.Author,
		URL:    p.URL,
	}

	if isRedditGalleryURL(p.URL) {
		gp, err := c.gallery.fetchPost(ctx, postURL)
		if err != nil {
			return nil, fmt.Errorf("gallery detail for %s: %w", id, err)
		}
		rp.GalleryItems = gp.GalleryItems
	}

	return rp, nil
}

// redditPostID extracts the base36 post id from a permalink or gallery URL.
func redditPostID(postURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(postURL))
	if err != nil {
		return "", fmt.Errorf("parse post url: %w", err)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i, seg := range segments {
		if (seg == "comments" || seg == "gallery") && i+1 < len(segments) && segments[i+1] != "" {
			return segments[i+1], nil
		}
	}
	return "", fmt.Errorf("post url %q carries no post id", postURL)
}

// isRedditGalleryURL reports whether the post's content URL points at a
// reddit gallery rather than a direct media file.
func isRedditGalleryURL(contentURL string) bool {
	return strings.Contains(contentURL, "/gallery/")
}
