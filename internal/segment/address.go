package segment

import (
	"math"
	"net/url"
)

// SegmentURL returns the absolute URL of segment number.
// Explicit segment map entries win; any other number is expanded from the
// media template, so numbers outside the plan get a best-effort URL.
func (p Plan) SegmentURL(number int64) string {
	if u, ok := p.segmentMap[number]; ok {
		return u
	}
	return resolveReference(p.BaseURL, ExpandTemplate(p.MediaTemplate, number))
}

// SeekToOffset converts a playback offset into a segment number.
//
// For dynamic plans the offset is seconds behind the live edge and the result
// never drops below ComparisonStartNumber. For static plans it is elapsed time
// from the start of the programme and the result is not clamped to EndNumber,
// though it saturates instead of overflowing for huge offsets.
func (p Plan) SeekToOffset(offsetSeconds float64) int64 {
	if offsetSeconds < 0 || math.IsNaN(offsetSeconds) {
		offsetSeconds = 0
	}

	ticks := math.Floor(offsetSeconds * float64(p.Timescale))
	segments := saturate(math.Floor(ticks/float64(p.SegmentDuration)), math.MaxInt64-max(p.StartNumber, p.EndNumber, 0))

	if p.IsDynamic {
		if segments >= p.EndNumber-p.ComparisonStartNumber {
			return p.ComparisonStartNumber
		}
		return p.EndNumber - segments
	}
	return p.StartNumber + segments
}

// saturate converts a non-negative whole number to int64, capped at limit.
func saturate(v float64, limit int64) int64 {
	if v < float64(limit) {
		return int64(v)
	}
	return limit
}

func resolveReference(baseURL, ref string) string {
	if baseURL == "" {
		return ref
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + ref
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return baseURL + ref
	}
	return base.ResolveReference(rel).String()
}
