package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/samvad-media-relay/internal/config"
	"github.com/samvad-hq/samvad-media-relay/internal/domain"
	"github.com/samvad-hq/samvad-media-relay/internal/history"
	"github.com/samvad-hq/samvad-media-relay/internal/logger"
	"github.com/samvad-hq/samvad-media-relay/internal/pipeline"
	"github.com/samvad-hq/samvad-media-relay/internal/transcode"
	"github.com/samvad-hq/samvad-media-relay/pkg/httpclient"
	"github.com/samvad-hq/samvad-media-relay/pkg/platforms"
	"github.com/samvad-hq/samvad-media-relay/pkg/sinks"
)

// Relay represents the media relay runtime. It owns the platform resolver,
// the ingestion pipeline, the run-history store, and the outcome sinks, and
// hands each submitted URL to the pipeline under a fresh request id.
type Relay struct {
	cfg      *config.Config
	resolver *platforms.Resolver
	adapter  *platforms.RedditAdapter
	service  *pipeline.Service
	fanout   *sinks.Fanout
	store    history.Store
	log      logger.Logger
}

// SubmitOptions carries per-request knobs for one ingestion.
type SubmitOptions struct {
	URL          string
	Note         string
	IncludeTitle bool
	Quality      string
}

// NewRelay builds a relay runtime from config.
func NewRelay(ctx context.Context, cfg *config.Config, log logger.Logger) (*Relay, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := httpclient.NewRestyClientWithUserAgent(cfg.HTTPTimeout, cfg.RedditUserAgent)

	adapter, err := platforms.NewRedditAdapter(platforms.RedditConfig{
		Mode:            cfg.RedditMode,
		ClientID:        cfg.RedditClientID,
		ClientSecret:    cfg.RedditClientSecret,
		Username:        cfg.RedditUsername,
		Password:        cfg.RedditPassword,
		UserAgent:       cfg.RedditUserAgent,
		RequestInterval: cfg.RedditRequestInterval,
		RateRetention:   cfg.RateRetention,
	}, client)
	if err != nil {
		return nil, fmt.Errorf("build reddit adapter: %w", err)
	}

	resolver := platforms.NewResolver(map[string]platforms.Adapter{
		platforms.RedditDomain: adapter,
	})
	log.InfoObj("platform resolver ready", "platforms_meta", map[string]any{
		"domains": resolver.Domains(),
		"mode":    cfg.RedditMode,
	})

	fanout, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := history.NewStore(cfg.HistoryType, cfg.BBoltPath, history.Options{})
	if err != nil {
		return nil, fmt.Errorf("init history: %w", err)
	}
	log.InfoObj("history initialized", "history_config", map[string]any{
		"type": cfg.HistoryType,
		"path": cfg.BBoltPath,
	})

	return &Relay{
		cfg:      cfg,
		resolver: resolver,
		adapter:  adapter,
		service:  pipeline.NewService(resolver, client, transcode.NewJPEG()),
		fanout:   fanout,
		store:    store,
		log:      log,
	}, nil
}

// buildSinks loads the sink registry and instantiates every enabled sink.
// An empty sinks file path means outcome publishing is disabled.
func buildSinks(ctx context.Context, cfg *config.Config, log logger.Logger) (*sinks.Fanout, error) {
	if cfg.SinksFile == "" {
		return sinks.NewFanout(nil), nil
	}

	reg, err := sinks.LoadRegistry(cfg.SinksFile)
	if err != nil {
		return nil, fmt.Errorf("load sinks registry: %w", err)
	}

	enabled := reg.Enabled()
	built, err := sinks.BuildAll(ctx, sinks.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build sinks: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, sinkCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   sinkCfg.ID,
			"type": sinkCfg.Type,
		})
	}
	log.InfoObj("sinks registry loaded", "sinks_meta", map[string]any{
		"count": len(summaries),
		"sinks": summaries,
	})

	return sinks.NewFanout(built), nil
}

// Submit runs one ingestion end to end and records the outcome. The returned
// error mirrors the pipeline's terminal failure; the run record is always
// non-nil.
func (r *Relay) Submit(ctx context.Context, opts SubmitOptions, rep pipeline.Reporter) (*pipeline.Run, error) {
	if r == nil || r.service == nil {
		return nil, fmt.Errorf("relay is not initialized")
	}

	quality, err := r.resolveQuality(opts.Quality)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{
		RequestID:    uuid.NewString(),
		URL:          opts.URL,
		Note:         opts.Note,
		IncludeTitle: opts.IncludeTitle,
		Quality:      quality,
	}
	r.log.InfoObj("ingestion submitted", "request_meta", map[string]any{
		"request_id": req.RequestID,
		"url":        req.URL,
		"quality":    quality.String(),
	})

	run, runErr := r.service.Run(ctx, req, rep)
	r.recordOutcome(ctx, req, run)
	r.logAdapterStats()
	return run, runErr
}

// resolveQuality picks the per-request level, falling back to the configured
// default when the request does not name one.
func (r *Relay) resolveQuality(name string) (domain.QualityLevel, error) {
	if name == "" {
		name = r.cfg.DefaultQuality
	}
	quality, err := domain.ParseQualityLevel(name)
	if err != nil {
		return 0, fmt.Errorf("resolve quality: %w", err)
	}
	return quality, nil
}

// recordOutcome persists the run in history and fans the event out to sinks.
// Both are best-effort audit paths and never affect the run's own outcome.
func (r *Relay) recordOutcome(ctx context.Context, req pipeline.Request, run *pipeline.Run) {
	if run == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	platform := ""
	sourceURL := req.URL
	if run.Post != nil {
		platform = string(run.Post.Platform)
		sourceURL = run.Post.SourceURL
	}

	entry := history.Entry{
		RequestID:   req.RequestID,
		Platform:    platform,
		SourceURL:   sourceURL,
		Status:      string(run.Status),
		FailureKind: string(run.FailureKind),
		Items:       run.CompletedItems,
		Quality:     req.Quality.Value(),
		ElapsedMs:   run.Elapsed.Milliseconds(),
		CompletedAt: time.Now().UTC(),
	}
	if err := r.store.Record(entry); err != nil {
		r.log.WarnObj("history record failed", "error", err.Error())
	}

	if r.fanout.Size() == 0 {
		return
	}
	evt := sinks.NewEvent(req.RequestID, platform, sourceURL, string(run.Status))
	evt.FailureKind = string(run.FailureKind)
	evt.Items = run.CompletedItems
	evt.Quality = req.Quality.Value()
	evt.ElapsedMs = run.Elapsed.Milliseconds()

	delivered, err := r.fanout.Publish(ctx, evt)
	if err != nil {
		r.log.WarnObj("outcome fanout partially failed", "fanout_errors", map[string]any{
			"request_id": req.RequestID,
			"delivered":  delivered,
			"error":      err.Error(),
		})
	}
}

// History returns the most recent completed runs, newest first. Empty when
// history is disabled.
func (r *Relay) History(limit int) ([]history.Entry, error) {
	if r == nil || r.store == nil {
		return nil, nil
	}
	return r.store.Recent(limit)
}

// logAdapterStats emits the sliding-window request counters after each run.
func (r *Relay) logAdapterStats() {
	if r.adapter == nil {
		return
	}
	r.log.InfoObj("upstream request rates", "rate_stats", r.adapter.Stats())
}

// Close releases the history store.
func (r *Relay) Close() {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("history close failed", "error", err.Error())
	}
}
