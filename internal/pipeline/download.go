package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/samvad-media-relay/internal/logger"
	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
)

const maxHTMLBodyBytes = 1 << 20 // 1 MiB

// Downloader retrieves media bytes for one MediaRef. When the platform hands
// out a viewer page instead of the raw file, a single OpenGraph og:image
// fallback is attempted before giving up.
type Downloader struct {
	client httpclient.Client
}

// NewDownloader wraps the shared HTTP client.
func NewDownloader(client httpclient.Client) *Downloader {
	return &Downloader{client: client}
}

// Download fetches the media bytes behind url. Non-2xx statuses are hard
// failures; there is no retry.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, error) {
	body, contentType, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}

	if !isHTMLContent(contentType) {
		return body, nil
	}

	imageURL, ok := openGraphImageURL(body)
	if !ok {
		// let the transcoder produce the decode failure
		return body, nil
	}
	logger.DebugObj("media url answered with html, following og:image", "og_fallback", map[string]any{
		"page_url":  url,
		"image_url": imageURL,
	})

	body, _, err = d.get(ctx, imageURL)
	return body, err
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := d.client.Get(ctx, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, "", &DownloadFailureError{URL: url, Status: resp.StatusCode()}
	}
	return resp.Body(), resp.ContentType(), nil
}

func isHTMLContent(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// openGraphImageURL extracts the og:image URL from an HTML page.
func openGraphImageURL(body []byte) (string, bool) {
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}

	node := doc.Find(`meta[property="og:image"]`).First()
	if node.Length() == 0 {
		return "", false
	}
	val, ok := node.Attr("content")
	val = strings.TrimSpace(val)
	return val, ok && val != ""
}
