package platforms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
)

// fakeHTTPResponse satisfies httpclient.Response with canned values.
type fakeHTTPResponse struct {
	body        []byte
	status      int
	contentType string
}

func (f fakeHTTPResponse) Body() []byte        { return f.body }
func (f fakeHTTPResponse) StatusCode() int     { return f.status }
func (f fakeHTTPResponse) ContentType() string { return f.contentType }

// fakeHTTPClient serves canned responses keyed by requested URL.
type fakeHTTPClient struct {
	responses map[string]fakeHTTPResponse
	err       error
	requests  []string
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	f.requests = append(f.requests, url)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[url]
	if !ok {
		return fakeHTTPResponse{status: 404, body: []byte("not found")}, nil
	}
	return resp, nil
}

const galleryPostJSON = `[{"data":{"children":[{"data":{
	"id":"abc123",
	"title":"gallery post",
	"author":"someone",
	"url":"https://www.reddit.com/gallery/abc123",
	"is_video":false,
	"media_metadata":{
		"m1":{"m":"image/jpeg","status":"valid"},
		"m2":{"m":"video/mp4","status":"valid"},
		"m3":{"m":"image/png","status":"valid"}
	},
	"gallery_data":{"items":[{"media_id":"m1"},{"media_id":"m2"},{"media_id":"m3"}]}
}}]}}]`

const directPostJSON = `[{"data":{"children":[{"data":{
	"id":"xyz789",
	"title":"single image",
	"author":"[deleted]",
	"url":"https://i.redd.it/xyz789"
}}]}}]`

func newTestRedditAdapter(t *testing.T, client *fakeHTTPClient) *RedditAdapter {
	t.Helper()
	adapter, err := NewRedditAdapter(RedditConfig{
		Mode:      RedditModePublic,
		UserAgent: "relay-test/1.0",
	}, client)
	if err != nil {
		t.Fatalf("NewRedditAdapter: %v", err)
	}
	return adapter
}

func TestRedditFetchGalleryFiltersDisallowedTypes(t *testing.T) {
	postURL := "https://www.reddit.com/r/pics/comments/abc123/gallery_post"
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{
		postURL + ".json?raw_json=1": {status: 200, body: []byte(galleryPostJSON)},
	}}
	adapter := newTestRedditAdapter(t, client)

	post, err := adapter.Fetch(context.Background(), postURL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(post.MediaRefs) != 2 {
		t.Fatalf("MediaRefs = %d, want 2 (mp4 entry dropped)", len(post.MediaRefs))
	}
	for i, ref := range post.MediaRefs {
		if ref.Ordinal != i {
			t.Errorf("ref %d has ordinal %d, want gap-free ordinals", i, ref.Ordinal)
		}
	}
	if !strings.HasSuffix(post.MediaRefs[0].URL, "m1.jpeg") {
		t.Errorf("first ref URL = %q, want m1.jpeg suffix", post.MediaRefs[0].URL)
	}
	if !strings.HasSuffix(post.MediaRefs[1].URL, "m3.png") {
		t.Errorf("second ref URL = %q, want m3.png suffix", post.MediaRefs[1].URL)
	}
	if post.Author != "someone" || post.Title != "gallery post" {
		t.Errorf("unexpected post metadata %+v", post)
	}
}

func TestRedditFetchDirectURLBecomesSoleRef(t *testing.T) {
	postURL := "https://www.reddit.com/r/pics/comments/xyz789/single_image/"
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{
		"https://www.reddit.com/r/pics/comments/xyz789/single_image.json?raw_json=1": {
			status: 200, body: []byte(directPostJSON),
		},
	}}
	adapter := newTestRedditAdapter(t, client)

	post, err := adapter.Fetch(context.Background(), postURL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(post.MediaRefs) != 1 {
		t.Fatalf("MediaRefs = %d, want 1", len(post.MediaRefs))
	}
	if post.MediaRefs[0].Ordinal != 0 || post.MediaRefs[0].URL != "https://i.redd.it/xyz789" {
		t.Fatalf("unexpected sole ref %+v", post.MediaRefs[0])
	}
	if post.Author != "" {
		t.Fatalf("deleted author should normalize to empty, got %q", post.Author)
	}
}

func TestRedditFetchCountsFailedAttempts(t *testing.T) {
	client := &fakeHTTPClient{err: errors.New("connection refused")}
	adapter := newTestRedditAdapter(t, client)

	for i := 0; i < 3; i++ {
		if _, err := adapter.Fetch(context.Background(), "https://reddit.com/r/x/comments/a/b"); err == nil {
			t.Fatalf("expected fetch error")
		}
	}

	stats := adapter.Stats()
	if stats.Total != 3 {
		t.Fatalf("Total = %d, want 3 (attempts are counted, not successes)", stats.Total)
	}
	if stats.Last5m != 3 || stats.Last10m != 3 || stats.Last15m != 3 {
		t.Fatalf("unexpected rate stats %+v", stats)
	}
}

func TestRedditFetchUpstreamErrorStatus(t *testing.T) {
	postURL := "https://www.reddit.com/r/pics/comments/gone/removed"
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{
		postURL + ".json?raw_json=1": {status: 404, body: []byte(`{"error":404}`)},
	}}
	adapter := newTestRedditAdapter(t, client)

	_, err := adapter.Fetch(context.Background(), postURL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestRedditPostID(t *testing.T) {
	cases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.reddit.com/r/pics/comments/abc123/some_title/", want: "abc123"},
		{url: "https://www.reddit.com/gallery/xyz789", want: "xyz789"},
		{url: "https://www.reddit.com/r/pics/", wantErr: true},
		{url: "https://i.redd.it/abc.jpg", wantErr: true},
	}

	for _, tc := range cases {
		got, err := redditPostID(tc.url)
		if tc.wantErr {
			if err == nil {
				t.Errorf("redditPostID(%q): expected error, got %q", tc.url, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("redditPostID(%q): %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("redditPostID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestRedditAdapterRequiresUserAgent(t *testing.T) {
	_, err := NewRedditAdapter(RedditConfig{Mode: RedditModePublic}, &fakeHTTPClient{})
	if err == nil {
		t.Fatalf("expected error for missing user agent")
	}
	if !strings.Contains(err.Error(), "user agent") {
		t.Fatalf("unexpected error: %v", err)
	}
}
