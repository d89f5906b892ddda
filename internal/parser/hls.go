package parser

import (
	"bytes"
	"math"
	"time"

	"github.com/agleyzer/dash2hls/internal/segment"
	"github.com/agleyzer/dash2hls/internal/variant"
	"github.com/grafov/m3u8"
)

// ParseHLS parses an HLS media playlist into a segment plan. Segment URIs are
// resolved against playlistURL and kept as explicit lookups; a numeric naming
// template is inferred from the first URI for numbers outside the playlist.
func ParseHLS(data []byte, playlistURL string) (segment.Plan, error) {
	media, err := decodeMedia(data)
	if err != nil {
		return segment.Plan{}, err
	}

	var (
		uris      []string
		durations []float64
	)
	for _, seg := range media.Segments {
		if seg == nil {
			break
		}
		uris = append(uris, seg.URI)
		durations = append(durations, seg.Duration)
	}

	if len(uris) == 0 {
		return segment.Plan{}, manifestErr(ErrNoSegments, "media playlist")
	}

	startNumber := int64(media.SeqNo)
	segmentMap := make(map[int64]string, len(uris))
	for i, uri := range uris {
		resolved, err := resolveURL(playlistURL, uri)
		if err != nil {
			return segment.Plan{}, &ManifestError{Kind: ErrMalformedManifest, Detail: "segment " + uri, Err: err}
		}
		segmentMap[startNumber+int64(i)] = resolved
	}

	tmpl, ok := segment.InferTemplate(uris[0])
	if !ok {
		return segment.Plan{}, manifestErr(ErrUnsupportedNaming, "%q has no numeric token", uris[0])
	}

	segmentDuration := int64(math.Round(durations[0]))
	if segmentDuration < 1 {
		segmentDuration = 1
	}

	plan := segment.Plan{
		IsDynamic:             !media.Closed,
		SegmentDuration:       segmentDuration,
		Timescale:             1,
		StartNumber:           startNumber,
		EndNumber:             startNumber + int64(len(uris)) - 1,
		ComparisonStartNumber: startNumber,
		MediaTemplate:         tmpl,
		BaseURL:               playlistURL,
		ParsedAt:              time.Now(),
	}.WithSegmentMap(segmentMap)

	if err := plan.Validate(); err != nil {
		return segment.Plan{}, &ManifestError{Kind: segment.ErrInvalidPlan, Err: err}
	}
	return plan, nil
}

// ParseMaster parses an HLS master playlist into its variant streams.
func ParseMaster(data []byte, masterURL string) ([]variant.Variant, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return nil, &ManifestError{Kind: ErrMalformedManifest, Detail: "m3u8", Err: err}
	}
	if listType != m3u8.MASTER {
		return nil, manifestErr(ErrMalformedManifest, "expected master playlist, got media playlist")
	}

	master, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok {
		return nil, manifestErr(ErrMalformedManifest, "unexpected playlist type")
	}

	var variants []variant.Variant
	for _, v := range master.Variants {
		if v == nil {
			continue
		}

		variantURL, err := resolveURL(masterURL, v.URI)
		if err != nil {
			return nil, &ManifestError{Kind: ErrMalformedManifest, Detail: "variant " + v.URI, Err: err}
		}

		variants = append(variants, variant.Variant{
			Bandwidth:   int(v.Bandwidth),
			Codecs:      v.Codecs,
			PlaylistURL: variantURL,
		})
	}

	if len(variants) == 0 {
		return nil, manifestErr(ErrNoSegments, "master playlist contains no variants")
	}
	return variants, nil
}

// IsMaster reports whether data decodes as an HLS master playlist.
func IsMaster(data []byte) bool {
	_, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	return err == nil && listType == m3u8.MASTER
}

func decodeMedia(data []byte) (*m3u8.MediaPlaylist, error) {
	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(data), false)
	if err != nil {
		return nil, &ManifestError{Kind: ErrMalformedManifest, Detail: "m3u8", Err: err}
	}
	if listType == m3u8.MASTER {
		return nil, manifestErr(ErrMasterPlaylist, "expected media playlist")
	}

	media, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok {
		return nil, manifestErr(ErrMalformedManifest, "unexpected playlist type")
	}
	return media, nil
}
