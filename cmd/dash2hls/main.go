// The dash2hls command translates DASH and HLS audio manifests into HLS playlists
// that start at an arbitrary playback offset.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agleyzer/dash2hls/internal/config"
	"github.com/agleyzer/dash2hls/internal/fetch"
	"github.com/agleyzer/dash2hls/internal/parser"
	"github.com/agleyzer/dash2hls/internal/server"
	"github.com/agleyzer/dash2hls/internal/stream"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

const (
	version = "1.0.0"
)

// options holds the one-shot command line settings.
type options struct {
	offset       float64
	count        int
	allow        []string
	format       parser.Format
	maxBandwidth int
	fetch        fetch.Config
}

func main() {
	// Parse command-line flags
	var (
		offset       = flag.Float64("offset", 0, "Playback offset in seconds (from the live edge for live streams)")
		count        = flag.Int("count", 6, "Number of segments in the playlist")
		allow        = flag.String("allow", "", "Comma-separated DASH representation ids to accept, in order of preference")
		format       = flag.String("format", "auto", "Manifest format: auto, dash or hls")
		maxBandwidth = flag.Int("max-bandwidth", 0, "Maximum HLS variant bandwidth in bits per second (0 = highest)")
		timeout      = flag.Duration("timeout", 30*time.Second, "Manifest fetch timeout")
		retries      = flag.Int("retries", 2, "Manifest fetch retries")
		serve        = flag.Bool("serve", false, "Run the HTTP playlist server")
		configPath   = flag.String("config", "streams.yaml", "Stream catalogue for --serve")
		port         = flag.Int("port", 0, "HTTP server port for --serve (overrides the config file)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion  = flag.Bool("version", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "dash2hls - DASH/HLS to HLS playlist translator v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <manifest-url>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s --serve [--config streams.yaml] [--port 8080]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Arguments:\n")
		fmt.Fprintf(os.Stderr, "  <manifest-url>    URL of a DASH MPD or HLS playlist (media or master)\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --allow audio=96000 https://example.com/live.mpd\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --offset 600 --count 10 https://example.com/show.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --max-bandwidth 128000 https://example.com/master.m3u8\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --serve --config streams.yaml\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("dash2hls v%s\n", version)
		os.Exit(0)
	}

	// Setup logger. Stdout carries the playlist in one-shot mode.
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	fetchLogger := fetch.NewLogger(os.Stderr, *verbose)

	if *serve {
		cfg, err := loadServeConfig(*configPath, *port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger.Info("dash2hls starting", "version", version, "config", *configPath)

		if err := runServer(ctx, cfg, fetchLogger, logger); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}

		logger.Info("dash2hls stopped")
		return
	}

	// Check for manifest URL argument
	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: manifest URL is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	// Validate flags
	if *count < 1 {
		fmt.Fprintf(os.Stderr, "Error: count must be at least 1\n")
		os.Exit(1)
	}

	if *offset < 0 {
		fmt.Fprintf(os.Stderr, "Error: offset cannot be negative\n")
		os.Exit(1)
	}

	f, err := parser.ParseFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := options{
		offset:       *offset,
		count:        *count,
		allow:        splitList(*allow),
		format:       f,
		maxBandwidth: *maxBandwidth,
		fetch: fetch.Config{
			Timeout:   *timeout,
			RetryMax:  *retries,
			UserAgent: "dash2hls/" + version,
			Logger:    fetchLogger,
		},
	}

	if err := run(ctx, flag.Arg(0), opts, os.Stdout, logger); err != nil {
		logger.Error("application error", "error", err)
		os.Exit(1)
	}
}

// run resolves manifestURL once and writes the playlist window to out.
func run(ctx context.Context, manifestURL string, opts options, out io.Writer, logger *slog.Logger) error {
	resolver := stream.NewResolver(fetch.NewHTTPFetcher(opts.fetch), logger)

	logger.Debug("fetching manifest", "url", manifestURL, "format", opts.format)
	plan, err := resolver.Resolve(ctx, stream.Source{
		URL:          manifestURL,
		Format:       opts.format,
		Allow:        opts.allow,
		MaxBandwidth: opts.maxBandwidth,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve manifest: %w", err)
	}

	if !plan.IsDynamic {
		if err := stream.CheckWindow(plan, plan.SeekToOffset(opts.offset)); err != nil {
			return err
		}
	}

	start, content := stream.Window(plan, opts.offset, opts.count)

	logger.Info("synthesized playlist",
		"dynamic", plan.IsDynamic,
		"start", start,
		"first", plan.ComparisonStartNumber,
		"last", plan.EndNumber,
		"segmentSeconds", plan.SegmentSeconds(),
	)

	_, err = io.WriteString(out, content)
	return err
}

// loadServeConfig reads and validates the stream catalogue. A non-zero port
// overrides the configured one.
func loadServeConfig(path string, port int) (*config.Config, error) {
	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServer serves the configured streams until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, fetchLogger hclog.Logger, logger *slog.Logger) error {
	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		Timeout:     cfg.Fetch.Timeout,
		RetryMax:    cfg.Fetch.Retries,
		UserAgent:   cfg.Fetch.UserAgent,
		MaxBodySize: cfg.Fetch.MaxBodySize,
		Logger:      fetchLogger,
	})
	resolver := stream.NewResolver(fetcher, logger)
	srv := server.New(cfg, resolver, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(ctx)
	})

	g.Go(func() error {
		probeStreams(ctx, cfg, resolver, logger)
		return nil
	})

	logger.Info("playlist server ready",
		"streams", fmt.Sprintf("http://localhost:%d/streams", cfg.Port),
		"health", fmt.Sprintf("http://localhost:%d/health", cfg.Port),
		"metrics", fmt.Sprintf("http://localhost:%d/metrics", cfg.Port),
	)

	return g.Wait()
}

// probeStreams resolves every configured stream once and logs the outcome.
// Failures are reported but do not stop the server.
func probeStreams(ctx context.Context, cfg *config.Config, resolver *stream.Resolver, logger *slog.Logger) {
	var g errgroup.Group
	g.SetLimit(4)

	for _, name := range cfg.StreamNames() {
		name := name
		sc := cfg.Streams[name]
		g.Go(func() error {
			src, err := sc.Source()
			if err != nil {
				logger.Warn("stream probe failed", "stream", name, "error", err)
				return nil
			}
			plan, err := resolver.Resolve(ctx, src)
			if err != nil {
				logger.Warn("stream probe failed", "stream", name, "url", src.URL, "error", err)
				return nil
			}
			logger.Info("stream available",
				"stream", name,
				"dynamic", plan.IsDynamic,
				"first", plan.ComparisonStartNumber,
				"last", plan.EndNumber,
			)
			return nil
		})
	}

	g.Wait()
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
