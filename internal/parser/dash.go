package parser

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agleyzer/dash2hls/internal/segment"
	"github.com/zencoder/go-dash/v3/mpd"
)

const (
	audioMimeType = "audio/mp4"
	dynamicType   = "dynamic"
)

// DASHOptions controls how an MPD is turned into a segment plan.
type DASHOptions struct {
	// ManifestURL is the final URL the MPD was fetched from. Relative media
	// templates resolve against its directory.
	ManifestURL string

	// Allow lists the acceptable representation ids.
	Allow []string

	// Now overrides the wall clock used to locate the live edge.
	Now time.Time
}

// ParseDASH parses an MPD document into a segment plan for the first audio
// representation whose id is allowed.
func ParseDASH(data []byte, opts DASHOptions) (segment.Plan, error) {
	manifest, err := mpd.ReadFromString(string(data))
	if err != nil {
		return segment.Plan{}, &ManifestError{Kind: ErrMalformedManifest, Detail: "mpd", Err: err}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	baseURL := ""
	if opts.ManifestURL != "" {
		baseURL, err = resolveURL(opts.ManifestURL, "./")
		if err != nil {
			return segment.Plan{}, &ManifestError{Kind: ErrMalformedManifest, Detail: "manifest url", Err: err}
		}
	}

	root, err := readRootAttributes(manifest)
	if err != nil {
		return segment.Plan{}, err
	}

	rep, tmpl, err := findRepresentation(manifest, opts.Allow)
	if err != nil {
		return segment.Plan{}, err
	}

	media, timescale, duration, startNumber, err := templateValues(rep, tmpl)
	if err != nil {
		return segment.Plan{}, err
	}

	plan := segment.Plan{
		IsDynamic:       root.dynamic,
		SegmentDuration: duration,
		Timescale:       timescale,
		StartNumber:     startNumber,
		MediaTemplate:   media,
		BaseURL:         baseURL,
		ParsedAt:        now,
	}

	if root.dynamic {
		if root.availabilityStart.IsZero() {
			return segment.Plan{}, manifestErr(ErrMissingAvailabilityStart, "dynamic manifest")
		}
		elapsed := now.Sub(root.availabilityStart)
		if elapsed < 0 {
			elapsed = 0
		}
		plan.EndNumber = startNumber + segmentsIn(elapsed, timescale, duration)
		plan.ComparisonStartNumber = startNumber
		if root.timeShiftBuffer > 0 {
			plan.ComparisonStartNumber = max(startNumber, plan.EndNumber-segmentsIn(root.timeShiftBuffer, timescale, duration))
		}
	} else {
		if root.presentationDuration == 0 {
			return segment.Plan{}, manifestErr(ErrMalformedDuration, "mediaPresentationDuration is required for static manifests")
		}
		count := segmentsIn(root.presentationDuration, timescale, duration)
		if count == 0 {
			return segment.Plan{}, manifestErr(ErrNoSegments, "presentation shorter than one segment")
		}
		plan.EndNumber = startNumber + count - 1
		plan.ComparisonStartNumber = startNumber
	}

	if err := plan.Validate(); err != nil {
		return segment.Plan{}, &ManifestError{Kind: segment.ErrInvalidPlan, Err: err}
	}
	return plan, nil
}

type rootAttributes struct {
	dynamic              bool
	timeShiftBuffer      time.Duration
	presentationDuration time.Duration
	availabilityStart    time.Time
}

func readRootAttributes(m *mpd.MPD) (rootAttributes, error) {
	var (
		root rootAttributes
		err  error
	)

	root.dynamic = deref(m.Type) == dynamicType

	if v := deref(m.TimeShiftBufferDepth); v != "" {
		if root.timeShiftBuffer, err = ParseDuration(v); err != nil {
			return root, err
		}
	}
	if v := deref(m.MediaPresentationDuration); v != "" {
		if root.presentationDuration, err = ParseDuration(v); err != nil {
			return root, err
		}
	}
	if v := deref(m.AvailabilityStartTime); v != "" {
		if root.availabilityStart, err = ParseDateTime(v); err != nil {
			return root, err
		}
	}

	return root, nil
}

// findRepresentation returns the first allowed audio representation together
// with the segment template that applies to it. The audio mimeType may be set
// on the adaptation set or on the representation itself.
func findRepresentation(m *mpd.MPD, allow []string) (*mpd.Representation, *mpd.SegmentTemplate, error) {
	allowed := make(map[string]bool, len(allow))
	for _, id := range allow {
		allowed[id] = true
	}

	for _, period := range m.Periods {
		if period == nil {
			continue
		}
		for _, as := range period.AdaptationSets {
			if as == nil {
				continue
			}
			audioSet := deref(as.MimeType) == audioMimeType
			for _, rep := range as.Representations {
				if rep == nil || !allowed[deref(rep.ID)] {
					continue
				}
				if !audioSet && deref(rep.MimeType) != audioMimeType {
					continue
				}

				tmpl := rep.SegmentTemplate
				if tmpl == nil {
					tmpl = as.SegmentTemplate
				}
				if tmpl == nil {
					return nil, nil, manifestErr(ErrMissingSegmentTemplate, "representation %q", deref(rep.ID))
				}
				return rep, tmpl, nil
			}
		}
	}

	return nil, nil, manifestErr(ErrNoMatchingRepresentation, "allowed ids [%s]", strings.Join(allow, ", "))
}

func templateValues(rep *mpd.Representation, tmpl *mpd.SegmentTemplate) (media string, timescale, duration, startNumber int64, err error) {
	id := deref(rep.ID)

	media = deref(tmpl.Media)
	if media == "" {
		return "", 0, 0, 0, manifestErr(ErrMissingSegmentTemplate, "representation %q: no media attribute", id)
	}
	media = strings.ReplaceAll(media, "$RepresentationID$", id)
	if rep.Bandwidth != nil {
		media = strings.ReplaceAll(media, "$Bandwidth$", strconv.FormatInt(*rep.Bandwidth, 10))
	}

	if tmpl.Duration == nil || *tmpl.Duration <= 0 {
		return "", 0, 0, 0, manifestErr(ErrMissingSegmentTemplate, "representation %q: no positive duration", id)
	}
	duration = *tmpl.Duration

	timescale = 1
	if tmpl.Timescale != nil {
		timescale = *tmpl.Timescale
	}
	if timescale < 1 {
		return "", 0, 0, 0, manifestErr(ErrMissingSegmentTemplate, "representation %q: timescale %d", id, timescale)
	}

	startNumber = 1
	if tmpl.StartNumber != nil {
		startNumber = *tmpl.StartNumber
	}

	return media, timescale, duration, startNumber, nil
}

// segmentsIn returns how many whole segments of duration ticks fit in d.
func segmentsIn(d time.Duration, timescale, duration int64) int64 {
	return int64(math.Floor(d.Seconds() * float64(timescale) / float64(duration)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
