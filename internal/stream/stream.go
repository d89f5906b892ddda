// Package stream turns a manifest URL into a segment plan and an HLS window.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/agleyzer/dash2hls/internal/fetch"
	"github.com/agleyzer/dash2hls/internal/metrics"
	"github.com/agleyzer/dash2hls/internal/parser"
	"github.com/agleyzer/dash2hls/internal/playlist"
	"github.com/agleyzer/dash2hls/internal/segment"
	"github.com/agleyzer/dash2hls/internal/variant"
)

// Source describes where a stream's manifest lives and how to read it.
type Source struct {
	// URL of the DASH MPD or HLS playlist (media or master).
	URL string
	// Format of the manifest; auto detects it from the response.
	Format parser.Format
	// Allow lists the acceptable DASH representation ids.
	Allow []string
	// MaxBandwidth caps HLS variant selection in bits per second (0 = no cap).
	MaxBandwidth int
}

// Resolver fetches and parses manifests. It keeps no state between calls:
// every Resolve reflects the manifest at the time it was fetched.
type Resolver struct {
	fetcher fetch.Fetcher
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the wall clock used to place the DASH live edge.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver that fetches manifests with f.
func NewResolver(f fetch.Fetcher, logger *slog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: f,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches src and parses it into a segment plan. HLS master playlists
// are followed to the selected variant's media playlist.
func (r *Resolver) Resolve(ctx context.Context, src Source) (segment.Plan, error) {
	resp, err := r.fetch(ctx, src.URL)
	if err != nil {
		return segment.Plan{}, err
	}

	format := src.Format
	if format == "" || format == parser.FormatAuto {
		format, err = parser.DetectFormat(resp.Body, resp.ContentType, resp.URL)
		if err != nil {
			return segment.Plan{}, err
		}
	}

	var plan segment.Plan
	switch format {
	case parser.FormatDASH:
		plan, err = parser.ParseDASH(resp.Body, parser.DASHOptions{
			ManifestURL: resp.URL,
			Allow:       src.Allow,
			Now:         r.now(),
		})
	case parser.FormatHLS:
		plan, err = r.resolveHLS(ctx, resp, src.MaxBandwidth)
	default:
		return segment.Plan{}, fmt.Errorf("unsupported format %q", format)
	}

	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ManifestParsesTotal.WithLabelValues(string(format), result).Inc()

	if err != nil {
		return segment.Plan{}, err
	}

	r.logger.Debug("resolved segment plan",
		"url", src.URL,
		"format", format,
		"dynamic", plan.IsDynamic,
		"start", plan.StartNumber,
		"comparisonStart", plan.ComparisonStartNumber,
		"end", plan.EndNumber,
	)

	return plan, nil
}

func (r *Resolver) resolveHLS(ctx context.Context, resp *fetch.Response, maxBandwidth int) (segment.Plan, error) {
	if !parser.IsMaster(resp.Body) {
		return parser.ParseHLS(resp.Body, resp.URL)
	}

	variants, err := parser.ParseMaster(resp.Body, resp.URL)
	if err != nil {
		return segment.Plan{}, err
	}

	v, _ := variant.Select(variants, maxBandwidth)
	r.logger.Debug("selected variant",
		"bandwidth", v.Bandwidth,
		"codecs", v.Codecs,
		"url", v.PlaylistURL,
		"variants", len(variants),
	)

	media, err := r.fetch(ctx, v.PlaylistURL)
	if err != nil {
		return segment.Plan{}, err
	}
	if parser.IsMaster(media.Body) {
		return segment.Plan{}, &parser.ManifestError{Kind: parser.ErrMasterPlaylist, Detail: "nested master playlist"}
	}
	return parser.ParseHLS(media.Body, media.URL)
}

func (r *Resolver) fetch(ctx context.Context, url string) (*fetch.Response, error) {
	start := time.Now()
	resp, err := r.fetcher.Fetch(ctx, url)

	status := metrics.ResultOK
	if err != nil {
		status = metrics.ResultError
	}
	metrics.ManifestFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return resp, nil
}

// Window seeks to offsetSeconds and renders an HLS playlist of up to count
// segments from there. It returns the first segment number of the window.
func Window(plan segment.Plan, offsetSeconds float64, count int) (int64, string) {
	start := plan.SeekToOffset(offsetSeconds)
	content := playlist.Generate(plan, start, count)
	metrics.PlaylistSegments.Observe(float64(playlist.EntryCount(plan, start, count)))
	return start, content
}

// ErrOutOfRange reports a static seek beyond the end of the programme.
var ErrOutOfRange = errors.New("offset beyond end of stream")

// CheckWindow reports ErrOutOfRange when start lies past the plan's last segment.
func CheckWindow(plan segment.Plan, start int64) error {
	if start > plan.EndNumber {
		return fmt.Errorf("%w: segment %d > %d", ErrOutOfRange, start, plan.EndNumber)
	}
	return nil
}
