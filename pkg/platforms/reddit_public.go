package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
)

// publicRedditClient reads posts through Reddit's unauthenticated JSON
// endpoint: the post permalink with a ".json" suffix. This is also the only
// surface that exposes gallery media metadata, so the authenticated client
// delegates gallery lookups here.
type publicRedditClient struct {
	http      httpclient.Client
	userAgent string
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPostData `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPostData struct {
	ID            string                      `json:"id"`
	Title         string                      `json:"title"`
	Author        string                      `json:"author"`
	URL           string                      `json:"url"`
	Permalink     string                      `json:"permalink"`
	IsVideo       bool                        `json:"is_video"`
	MediaMetadata map[string]redditMediaEntry `json:"media_metadata"`
	GalleryData   struct {
		Items []struct {
			MediaID string `json:"media_id"`
		} `json:"items"`
	} `json:"gallery_data"`
}

type redditMediaEntry struct {
	MIME   string `json:"m"`
	Status string `json:"status"`
}

func (c *publicRedditClient) fetchPost(ctx context.Context, postURL string) (*redditPost, error) {
	jsonURL, err := redditJSONURL(postURL)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{"User-Agent": c.userAgent}
	resp, err := c.http.Get(ctx, jsonURL, headers)
	if err != nil {
		return nil, fmt.Errorf("reddit json endpoint: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("reddit json endpoint returned status %d body: %s",
			resp.StatusCode(), responseSnippet(resp.Body()))
	}

	data, err := parseRedditPostJSON(resp.Body())
	if err != nil {
		return nil, err
	}

	return &redditPost{
		ID:           data.ID,
		Title:        data.Title,
		Author:       data.Author,
		URL:          data.URL,
		GalleryItems: galleryItems(data),
	}, nil
}

// redditJSONURL rewrites a post permalink into its JSON-endpoint form,
// dropping query and fragment.
func redditJSONURL(postURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(postURL))
	if err != nil {
		return "", fmt.Errorf("parse post url: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("post url %q has no host", postURL)
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + ".json"
	parsed.RawQuery = "raw_json=1"
	parsed.Fragment = ""
	return parsed.String(), nil
}

// parseRedditPostJSON handles both response shapes of the endpoint: comment
// pages answer with an array of listings, plain listings with one object.
func parseRedditPostJSON(body []byte) (*redditPostData, error) {
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		var single redditListing
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode reddit post json: %w", err)
		}
		listings = []redditListing{single}
	}

	for _, l := range listings {
		for _, child := range l.Data.Children {
			if child.Data.ID != "" {
				d := child.Data
				return &d, nil
			}
		}
	}
	return nil, fmt.Errorf("reddit post json contained no post record")
}

// galleryItems returns the post's gallery entries in declared order.
// gallery_data fixes the order; media_metadata carries the MIME types. When
// only media_metadata is present, sorted keys keep the order deterministic.
func galleryItems(data *redditPostData) []redditGalleryItem {
	if len(data.MediaMetadata) == 0 {
		return nil
	}

	var items []redditGalleryItem
	if len(data.GalleryData.Items) > 0 {
		for _, gi := range data.GalleryData.Items {
			meta, ok := data.MediaMetadata[gi.MediaID]
			if !ok {
				continue
			}
			items = append(items, redditGalleryItem{MediaID: gi.MediaID, MIME: meta.MIME})
		}
		return items
	}

	ids := make([]string, 0, len(data.MediaMetadata))
	for id := range data.MediaMetadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		items = append(items, redditGalleryItem{MediaID: id, MIME: data.MediaMetadata[id].MIME})
	}
	return items
}

// responseSnippet trims an upstream body for inclusion in error messages.
func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
