package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/samvad-hq/samvad-media-relay/internal/domain"
	"github.com/samvad-hq/samvad-media-relay/internal/transcode"
	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-media-relay/pkg/platforms"
)

// fakeAdapter returns a preset post or error and records calls.
type fakeAdapter struct {
	post  *domain.Post
	err   error
	calls int
}

func (f *fakeAdapter) Platform() domain.Platform { return domain.PlatformReddit }
func (f *fakeAdapter) Fetch(_ context.Context, _ string) (*domain.Post, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.post, nil
}
func (f *fakeAdapter) Stats() platforms.RateStats { return platforms.RateStats{} }

// fakeResponse satisfies httpclient.Response.
type fakeResponse struct {
	body        []byte
	status      int
	contentType string
}

func (f fakeResponse) Body() []byte        { return f.body }
func (f fakeResponse) StatusCode() int     { return f.status }
func (f fakeResponse) ContentType() string { return f.contentType }

// fakeHTTP serves canned responses keyed by URL.
type fakeHTTP struct {
	responses map[string]fakeResponse
}

func (f *fakeHTTP) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	if resp, ok := f.responses[url]; ok {
		return resp, nil
	}
	return fakeResponse{status: 404, body: []byte("missing")}, nil
}

// passthroughTranscoder hands input bytes through, or fails with a preset error.
type passthroughTranscoder struct {
	err error
}

func (p passthroughTranscoder) Transcode(raw []byte, _ int) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return raw, nil
}

// recordingReporter captures every reporter call in order.
type recordingReporter struct {
	events    []string
	snapshots [][2]int
	result    *Result
	failures  []FailureKind
	details   []string
	retracts  int

	beginErr   error
	resultErr  error
	retractErr error
}

func (r *recordingReporter) Begin(_ context.Context, total int) error {
	r.events = append(r.events, "begin")
	return r.beginErr
}

func (r *recordingReporter) PublishProgress(_ context.Context, completed, total int) error {
	r.events = append(r.events, "progress")
	r.snapshots = append(r.snapshots, [2]int{completed, total})
	return nil
}

func (r *recordingReporter) PublishResult(_ context.Context, result *Result) error {
	r.events = append(r.events, "result")
	if r.resultErr != nil {
		return r.resultErr
	}
	r.result = result
	return nil
}

func (r *recordingReporter) PublishFailure(_ context.Context, kind FailureKind, detail string) error {
	r.events = append(r.events, "failure")
	r.failures = append(r.failures, kind)
	r.details = append(r.details, detail)
	return nil
}

func (r *recordingReporter) RetractProgress(_ context.Context) error {
	r.events = append(r.events, "retract")
	r.retracts++
	return r.retractErr
}

func newTestService(adapter platforms.Adapter, http *fakeHTTP, tr transcode.Transcoder) *Service {
	resolver := platforms.NewResolver(map[string]platforms.Adapter{"reddit.com": adapter})
	return NewService(resolver, http, tr)
}

func singleImagePost() *domain.Post {
	return &domain.Post{
		Platform:  domain.PlatformReddit,
		SourceURL: "https://reddit.com/r/x/abc",
		Author:    "author1",
		Title:     "a title",
		MediaRefs: []domain.MediaRef{{URL: "https://i.redd.it/a.jpg", Ordinal: 0}},
	}
}

func TestRunSingleImageSucceeds(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("imagebytes"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID:    "req-1",
		URL:          "https://reddit.com/r/x/abc",
		IncludeTitle: true,
		Quality:      domain.QualitySuperior,
	}, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != StatusSucceeded {
		t.Fatalf("Status = %s, want succeeded", run.Status)
	}
	if run.TotalItems != 1 || run.CompletedItems != 1 {
		t.Fatalf("items = %d/%d, want 1/1", run.CompletedItems, run.TotalItems)
	}
	if len(rep.snapshots) != 1 || rep.snapshots[0] != [2]int{1, 1} {
		t.Fatalf("snapshots = %v, want [(1,1)]", rep.snapshots)
	}
	if rep.result == nil || len(rep.result.Attachments) != 1 {
		t.Fatalf("missing result or attachments: %+v", rep.result)
	}
	if got := rep.result.Attachments[0].Filename; got != "image_0.jpg" {
		t.Fatalf("attachment filename = %q, want image_0.jpg", got)
	}
	wantEvents := []string{"begin", "progress", "retract", "result"}
	if len(rep.events) != len(wantEvents) {
		t.Fatalf("events = %v, want %v", rep.events, wantEvents)
	}
	for i, e := range wantEvents {
		if rep.events[i] != e {
			t.Fatalf("events = %v, want %v", rep.events, wantEvents)
		}
	}
}

func TestRunComposesMessageBody(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("x"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	_, err := svc.Run(context.Background(), Request{
		RequestID:    "req-2",
		URL:          "https://reddit.com/r/x/abc",
		Note:         "look at this",
		IncludeTitle: true,
		Quality:      domain.QualityGood,
	}, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "© [author1](https://reddit.com/r/x/abc)\n# a title\n> look at this"
	if rep.result.Body != want {
		t.Fatalf("body = %q, want %q", rep.result.Body, want)
	}
}

func TestRunAuthorPlaceholderAndNoTitle(t *testing.T) {
	post := singleImagePost()
	post.Author = ""
	adapter := &fakeAdapter{post: post}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("x"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	_, err := svc.Run(context.Background(), Request{
		RequestID: "req-3",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "© [Author not found](https://reddit.com/r/x/abc)"
	if rep.result.Body != want {
		t.Fatalf("body = %q, want %q", rep.result.Body, want)
	}
}

func TestRunUnsupportedDomainNeverCallsAdapter(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	rep := &recordingReporter{}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-4",
		URL:       "https://example.org/post/1",
		Quality:   domain.QualityGood,
	}, rep)
	if err == nil {
		t.Fatalf("expected failure")
	}

	if adapter.calls != 0 {
		t.Fatalf("adapter called %d times for unsupported domain", adapter.calls)
	}
	if run.Status != StatusFailed || run.FailureKind != FailureUnsupportedPlatform {
		t.Fatalf("run = %s/%s, want failed/unsupported_platform", run.Status, run.FailureKind)
	}
	if len(rep.failures) != 1 || rep.failures[0] != FailureUnsupportedPlatform {
		t.Fatalf("failures = %v", rep.failures)
	}
	if rep.retracts != 0 {
		t.Fatalf("retraction without a shown indicator")
	}
}

func TestRunZeroMediaFailsWithNoMediaFound(t *testing.T) {
	post := singleImagePost()
	post.MediaRefs = nil
	adapter := &fakeAdapter{post: post}
	rep := &recordingReporter{}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-5",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if !errors.Is(err, ErrNoMediaFound) {
		t.Fatalf("err = %v, want ErrNoMediaFound", err)
	}
	if run.FailureKind != FailureNoMediaFound {
		t.Fatalf("FailureKind = %s", run.FailureKind)
	}
	if rep.result != nil {
		t.Fatalf("zero-media post must never produce a result")
	}
}

func TestRunUpstreamFetchFailure(t *testing.T) {
	adapter := &fakeAdapter{err: errors.New("api exploded")}
	rep := &recordingReporter{}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-6",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)

	var fetchErr *UpstreamFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want UpstreamFetchError", err)
	}
	if run.FailureKind != FailureUpstreamFetch {
		t.Fatalf("FailureKind = %s", run.FailureKind)
	}
}

func TestRunDownloadFailureRetractsIndicator(t *testing.T) {
	post := singleImagePost()
	post.MediaRefs = []domain.MediaRef{
		{URL: "https://i.redd.it/a.jpg", Ordinal: 0},
		{URL: "https://i.redd.it/gone.jpg", Ordinal: 1},
	}
	adapter := &fakeAdapter{post: post}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("x"), contentType: "image/jpeg"},
		// gone.jpg answers 404 via default
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-7",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)

	var dlErr *DownloadFailureError
	if !errors.As(err, &dlErr) {
		t.Fatalf("err = %v, want DownloadFailureError", err)
	}
	if dlErr.Status != 404 {
		t.Fatalf("Status = %d, want 404", dlErr.Status)
	}
	if run.CompletedItems != 1 {
		t.Fatalf("CompletedItems = %d, want 1", run.CompletedItems)
	}

	// Indicator was shown, so retraction must precede the failure publication.
	sawRetract := false
	for _, e := range rep.events {
		if e == "retract" {
			sawRetract = true
		}
		if e == "failure" && !sawRetract {
			t.Fatalf("failure published before retraction: %v", rep.events)
		}
	}
	if !sawRetract {
		t.Fatalf("indicator never retracted: %v", rep.events)
	}
}

func TestRunDecodeFailure(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("not an image"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{err: &transcode.DecodeError{Err: errors.New("bad magic")}})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-8",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err == nil {
		t.Fatalf("expected decode failure")
	}
	if run.FailureKind != FailureDecode {
		t.Fatalf("FailureKind = %s, want decode_error", run.FailureKind)
	}
}

func TestRunPayloadTooLargeIsDistinctOutcome(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("x"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{resultErr: ErrPayloadTooLarge}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-9",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityPerfect,
	}, rep)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
	if run.FailureKind != FailurePayloadTooLarge {
		t.Fatalf("FailureKind = %s", run.FailureKind)
	}
	if len(rep.failures) != 1 {
		t.Fatalf("failures = %v, want exactly one", rep.failures)
	}
	if rep.details[0] == "" {
		t.Fatalf("payload-too-large detail must advise a retry")
	}
}

func TestRunProgressIsStrictlyMonotonic(t *testing.T) {
	post := singleImagePost()
	post.MediaRefs = []domain.MediaRef{
		{URL: "https://i.redd.it/a.jpg", Ordinal: 0},
		{URL: "https://i.redd.it/b.jpg", Ordinal: 1},
		{URL: "https://i.redd.it/c.jpg", Ordinal: 2},
	}
	adapter := &fakeAdapter{post: post}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("a"), contentType: "image/jpeg"},
		"https://i.redd.it/b.jpg": {status: 200, body: []byte("b"), contentType: "image/jpeg"},
		"https://i.redd.it/c.jpg": {status: 200, body: []byte("c"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-10",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rep.snapshots) != 3 {
		t.Fatalf("snapshots = %v, want 3", rep.snapshots)
	}
	prev := 0
	for _, snap := range rep.snapshots {
		if snap[0] <= prev {
			t.Fatalf("snapshots not strictly increasing: %v", rep.snapshots)
		}
		if snap[0] > snap[1] {
			t.Fatalf("completed %d exceeds total %d", snap[0], snap[1])
		}
		prev = snap[0]
	}

	// Outputs carry gap-free ordinals 0..completed-1.
	for i, out := range run.Outputs {
		if out.Ordinal != i {
			t.Fatalf("output %d has ordinal %d", i, out.Ordinal)
		}
	}
}

func TestRunCancelledContextCleansUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	adapter := &fakeAdapter{post: singleImagePost()}
	rep := &recordingReporter{}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(ctx, Request{
		RequestID: "req-11",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err == nil {
		t.Fatalf("expected cancellation failure")
	}
	if run.Status != StatusFailed {
		t.Fatalf("Status = %s, want failed", run.Status)
	}
	if rep.retracts != 1 {
		t.Fatalf("retracts = %d, want 1 (cleanup must run on cancellation)", rep.retracts)
	}
	if len(rep.failures) != 1 {
		t.Fatalf("failures = %v, want exactly one", rep.failures)
	}
}

func TestRunRetractionFailureDoesNotBlockResult(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	http := &fakeHTTP{responses: map[string]fakeResponse{
		"https://i.redd.it/a.jpg": {status: 200, body: []byte("x"), contentType: "image/jpeg"},
	}}
	rep := &recordingReporter{retractErr: errors.New("indicator already gone")}
	svc := newTestService(adapter, http, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-13",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if run.Status != StatusSucceeded {
		t.Fatalf("Status = %s, want succeeded", run.Status)
	}
	if rep.result == nil {
		t.Fatalf("result must still be published when retraction fails")
	}
	if len(rep.failures) != 0 {
		t.Fatalf("no failure expected, got %v", rep.failures)
	}
}

func TestRunRetractionFailureKeepsOriginalFailure(t *testing.T) {
	post := singleImagePost()
	post.MediaRefs = []domain.MediaRef{{URL: "https://i.redd.it/gone.jpg", Ordinal: 0}}
	adapter := &fakeAdapter{post: post}
	// gone.jpg answers 404 via the fakeHTTP default
	rep := &recordingReporter{retractErr: errors.New("indicator already gone")}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-14",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)

	// The retraction error must never mask the download failure.
	var dlErr *DownloadFailureError
	if !errors.As(err, &dlErr) {
		t.Fatalf("err = %v, want DownloadFailureError", err)
	}
	if run.FailureKind != FailureDownload {
		t.Fatalf("FailureKind = %s, want download_failure", run.FailureKind)
	}
	if rep.retracts != 1 {
		t.Fatalf("retracts = %d, want 1", rep.retracts)
	}
	if len(rep.failures) != 1 || rep.failures[0] != FailureDownload {
		t.Fatalf("failures = %v, want exactly one download_failure", rep.failures)
	}
}

func TestRunBeginFailureAborts(t *testing.T) {
	adapter := &fakeAdapter{post: singleImagePost()}
	rep := &recordingReporter{beginErr: errors.New("transport down")}
	svc := newTestService(adapter, &fakeHTTP{}, passthroughTranscoder{})

	run, err := svc.Run(context.Background(), Request{
		RequestID: "req-12",
		URL:       "https://reddit.com/r/x/abc",
		Quality:   domain.QualityGood,
	}, rep)
	if err == nil {
		t.Fatalf("expected failure when indicator cannot be announced")
	}
	if run.FailureKind != FailureUnknown {
		t.Fatalf("FailureKind = %s, want unknown", run.FailureKind)
	}
	if len(rep.snapshots) != 0 {
		t.Fatalf("no snapshots expected, got %v", rep.snapshots)
	}
}
