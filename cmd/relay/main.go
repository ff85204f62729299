package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/samvad-hq/samvad-media-relay/internal/app"
	"github.com/samvad-hq/samvad-media-relay/internal/config"
	"github.com/samvad-hq/samvad-media-relay/internal/logger"
	"github.com/samvad-hq/samvad-media-relay/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "relay failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	note := flag.String("note", "", "optional note appended to the result body")
	includeTitle := flag.Bool("title", true, "include the post title in the result body")
	quality := flag.String("quality", "", "transcode quality level (name or numeric value)")
	outDir := flag.String("out", ".", "directory where transcoded attachments are written")
	historyN := flag.Int("history", 0, "print the N most recent runs instead of ingesting")
	flag.Parse()

	var postURL string
	if *historyN <= 0 {
		if flag.NArg() != 1 {
			return fmt.Errorf("usage: relay [flags] <post-url>")
		}
		postURL = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("relay starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay, err := app.NewRelay(ctx, cfg, logger.Default())
	if err != nil {
		logger.ErrorObj("failed to initialize relay", "error", err)
		return err
	}
	defer relay.Close()

	if *historyN > 0 {
		return printHistory(relay, *historyN)
	}

	reporter := &consoleReporter{out: os.Stdout, dir: *outDir}
	_, err = relay.Submit(ctx, app.SubmitOptions{
		URL:          postURL,
		Note:         *note,
		IncludeTitle: *includeTitle,
		Quality:      *quality,
	}, reporter)
	if err != nil {
		return fmt.Errorf("relay run: %w", err)
	}

	return nil
}

// printHistory renders the recent run audit trail, newest first.
func printHistory(relay *app.Relay, n int) error {
	entries, err := relay.History(n)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %s  items=%d  elapsed=%dms  %s",
			e.CompletedAt.Format("2006-01-02 15:04:05"), e.Status, e.RequestID, e.Items, e.ElapsedMs, e.SourceURL)
		if e.FailureKind != "" {
			line += "  kind=" + e.FailureKind
		}
		fmt.Println(line)
	}
	return nil
}

// consoleReporter renders pipeline progress on stdout and writes the
// transcoded attachments into a local directory.
type consoleReporter struct {
	out *os.File
	dir string
}

func (c *consoleReporter) Begin(_ context.Context, total int) error {
	fmt.Fprintf(c.out, "converting %d item(s)...\n", total)
	return nil
}

func (c *consoleReporter) PublishProgress(_ context.Context, completed, total int) error {
	fmt.Fprintf(c.out, "converted %d of %d\n", completed, total)
	return nil
}

func (c *consoleReporter) PublishResult(_ context.Context, result *pipeline.Result) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, att := range result.Attachments {
		path := filepath.Join(c.dir, att.Filename)
		if err := os.WriteFile(path, att.Bytes, 0o644); err != nil {
			return fmt.Errorf("write attachment %s: %w", att.Filename, err)
		}
		fmt.Fprintf(c.out, "wrote %s\n", path)
	}
	fmt.Fprintln(c.out, result.Body)
	return nil
}

func (c *consoleReporter) PublishFailure(_ context.Context, kind pipeline.FailureKind, detail string) error {
	fmt.Fprintf(c.out, "failed (%s): %s\n", kind, detail)
	return nil
}

func (c *consoleReporter) RetractProgress(context.Context) error {
	return nil
}
