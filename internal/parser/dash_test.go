package parser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/agleyzer/dash2hls/internal/segment"
)

const liveMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic"
     availabilityStartTime="2024-03-01T00:00:00Z"
     timeShiftBufferDepth="PT1H" minBufferTime="PT3.840S"
     profiles="urn:mpeg:dash:profile:isoff-live:2011">
  <Period id="1" start="PT0S">
    <AdaptationSet mimeType="video/mp4">
      <SegmentTemplate media="video-$Number$.m4s" timescale="1" duration="2" startNumber="1"/>
      <Representation id="video=1000000" bandwidth="1000000"/>
    </AdaptationSet>
    <AdaptationSet mimeType="audio/mp4" contentType="audio">
      <SegmentTemplate media="$RepresentationID$/$Number$.m4s" timescale="1" duration="6" startNumber="1"/>
      <Representation id="audio=320000" bandwidth="320000" codecs="mp4a.40.2"/>
      <Representation id="audio=96000" bandwidth="96000" codecs="mp4a.40.5"/>
    </AdaptationSet>
  </Period>
</MPD>`

const onDemandMPD = `<?xml version="1.0" encoding="UTF-8"?>
<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static"
     mediaPresentationDuration="PT1H0M0.000S" minBufferTime="PT3.840S"
     profiles="urn:mpeg:dash:profile:isoff-live:2011">
  <Period id="1">
    <AdaptationSet mimeType="audio/mp4">
      <Representation id="audio=96000" bandwidth="96000">
        <SegmentTemplate media="seg_$Bandwidth$_$Number%05d$.m4s" timescale="48000" duration="384000" startNumber="1"/>
      </Representation>
    </AdaptationSet>
  </Period>
</MPD>`

var availabilityStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestParseDASH_DynamicExample(t *testing.T) {
	plan, err := ParseDASH([]byte(liveMPD), DASHOptions{
		ManifestURL: "https://example.com/live/stream.mpd",
		Allow:       []string{"audio=320000"},
		Now:         availabilityStart.Add(90 * time.Second),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !plan.IsDynamic {
		t.Error("Expected dynamic plan")
	}
	if plan.StartNumber != 1 {
		t.Errorf("Expected start number 1, got %d", plan.StartNumber)
	}
	if plan.EndNumber != 16 {
		t.Errorf("Expected end number 16, got %d", plan.EndNumber)
	}
	if plan.ComparisonStartNumber != 1 {
		t.Errorf("Expected comparison start 1, got %d", plan.ComparisonStartNumber)
	}
	if plan.SegmentDuration != 6 || plan.Timescale != 1 {
		t.Errorf("Expected 6/1 duration/timescale, got %d/%d", plan.SegmentDuration, plan.Timescale)
	}
	if plan.BaseURL != "https://example.com/live/" {
		t.Errorf("Expected base URL of manifest directory, got %s", plan.BaseURL)
	}
	if got := plan.SegmentURL(16); got != "https://example.com/live/audio=320000/16.m4s" {
		t.Errorf("Unexpected segment URL %s", got)
	}
}

func TestParseDASH_DynamicBufferWindow(t *testing.T) {
	plan, err := ParseDASH([]byte(liveMPD), DASHOptions{
		Allow: []string{"audio=96000"},
		Now:   availabilityStart.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// 7200s / 6s = 1200 segments elapsed; 3600s buffer = 600 segments.
	if plan.EndNumber != 1201 {
		t.Errorf("Expected end number 1201, got %d", plan.EndNumber)
	}
	if plan.ComparisonStartNumber != 601 {
		t.Errorf("Expected comparison start 601, got %d", plan.ComparisonStartNumber)
	}
	for _, offset := range []float64{0, 5, 6, 3599, 3600, 3601, 100000} {
		n := plan.SeekToOffset(offset)
		if n < plan.ComparisonStartNumber || n > plan.EndNumber {
			t.Errorf("SeekToOffset(%v) = %d outside window", offset, n)
		}
	}
}

func TestParseDASH_BeforeAvailabilityStart(t *testing.T) {
	plan, err := ParseDASH([]byte(liveMPD), DASHOptions{
		Allow: []string{"audio=96000"},
		Now:   availabilityStart.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if plan.EndNumber != plan.StartNumber || plan.ComparisonStartNumber != plan.StartNumber {
		t.Errorf("Expected empty window at start, got [%d, %d]", plan.ComparisonStartNumber, plan.EndNumber)
	}
}

func TestParseDASH_Static(t *testing.T) {
	plan, err := ParseDASH([]byte(onDemandMPD), DASHOptions{
		ManifestURL: "https://example.com/vod/programme.mpd?token=x",
		Allow:       []string{"audio=96000"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if plan.IsDynamic {
		t.Error("Expected static plan")
	}
	// 3600s * 48000 / 384000 = 450 segments
	if got := plan.EndNumber - plan.StartNumber + 1; got != 450 {
		t.Errorf("Expected 450 segments, got %d", got)
	}
	if plan.ComparisonStartNumber != plan.StartNumber {
		t.Errorf("Expected comparison start %d, got %d", plan.StartNumber, plan.ComparisonStartNumber)
	}
	if plan.SeekToOffset(0) != plan.StartNumber {
		t.Errorf("Expected seek 0 to return start number, got %d", plan.SeekToOffset(0))
	}
	if got := plan.SegmentURL(3); got != "https://example.com/vod/seg_96000_00003.m4s" {
		t.Errorf("Unexpected segment URL %s", got)
	}
}

func TestParseDASH_RepresentationMimeType(t *testing.T) {
	doc := `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT60S"><Period>
<AdaptationSet><SegmentTemplate media="$RepresentationID$-$Number$.m4s" duration="6"/>
<Representation id="v1" mimeType="video/mp4"/>
<Representation id="a1" mimeType="audio/mp4"/>
</AdaptationSet></Period></MPD>`

	plan, err := ParseDASH([]byte(doc), DASHOptions{
		ManifestURL: "https://example.com/vod/show.mpd",
		Allow:       []string{"v1", "a1"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if plan.MediaTemplate != "a1-$Number$.m4s" {
		t.Errorf("Expected audio representation template, got %q", plan.MediaTemplate)
	}
	if plan.EndNumber != 10 {
		t.Errorf("Expected end number 10, got %d", plan.EndNumber)
	}

	_, err = ParseDASH([]byte(doc), DASHOptions{Allow: []string{"v1"}})
	if !errors.Is(err, ErrNoMatchingRepresentation) {
		t.Errorf("Expected ErrNoMatchingRepresentation for video-only allow list, got %v", err)
	}
}

func TestParseDASH_StaticSegmentCountProperty(t *testing.T) {
	tests := []struct {
		duration  string
		seconds   float64
		timescale int64
		segment   int64
	}{
		{"PT30M", 1800, 48000, 288000},
		{"PT1H2M3.5S", 3723.5, 1, 4},
		{"PT59.9S", 59.9, 1000, 6000},
		{"P1DT1H", 90000, 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			doc := fmt.Sprintf(`<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="%s"><Period>
<AdaptationSet mimeType="audio/mp4">
<SegmentTemplate media="s-$Number$.m4s" timescale="%d" duration="%d" startNumber="10"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`, tt.duration, tt.timescale, tt.segment)

			plan, err := ParseDASH([]byte(doc), DASHOptions{Allow: []string{"a"}})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			want := int64(tt.seconds * float64(tt.timescale) / float64(tt.segment))
			if got := plan.EndNumber - plan.StartNumber + 1; got != want {
				t.Errorf("Expected %d segments, got %d", want, got)
			}
		})
	}
}

func TestParseDASH_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		allow []string
		kind  error
	}{
		{
			name:  "allow list matches nothing",
			doc:   liveMPD,
			allow: []string{"audio=48000"},
			kind:  ErrNoMatchingRepresentation,
		},
		{
			name:  "empty allow list",
			doc:   liveMPD,
			allow: nil,
			kind:  ErrNoMatchingRepresentation,
		},
		{
			name:  "video representation is not audio",
			doc:   liveMPD,
			allow: []string{"video=1000000"},
			kind:  ErrNoMatchingRepresentation,
		},
		{
			name: "no segment template",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT10S"><Period>
<AdaptationSet mimeType="audio/mp4"><Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrMissingSegmentTemplate,
		},
		{
			name: "template without duration",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT10S"><Period>
<AdaptationSet mimeType="audio/mp4"><SegmentTemplate media="$Number$.m4s"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrMissingSegmentTemplate,
		},
		{
			name: "malformed buffer depth",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic" availabilityStartTime="2024-03-01T00:00:00Z" timeShiftBufferDepth="one hour"><Period>
<AdaptationSet mimeType="audio/mp4"><SegmentTemplate media="$Number$.m4s" duration="6"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrMalformedDuration,
		},
		{
			name: "dynamic without availability start",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="dynamic" timeShiftBufferDepth="PT1H"><Period>
<AdaptationSet mimeType="audio/mp4"><SegmentTemplate media="$Number$.m4s" duration="6"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrMissingAvailabilityStart,
		},
		{
			name: "static without duration",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static"><Period>
<AdaptationSet mimeType="audio/mp4"><SegmentTemplate media="$Number$.m4s" duration="6"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrMalformedDuration,
		},
		{
			name: "static shorter than a segment",
			doc: `<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" type="static" mediaPresentationDuration="PT5S"><Period>
<AdaptationSet mimeType="audio/mp4"><SegmentTemplate media="$Number$.m4s" duration="6"/>
<Representation id="a"/></AdaptationSet></Period></MPD>`,
			allow: []string{"a"},
			kind:  ErrNoSegments,
		},
		{
			name:  "not xml",
			doc:   "#EXTM3U",
			allow: []string{"a"},
			kind:  ErrMalformedManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDASH([]byte(tt.doc), DASHOptions{Allow: tt.allow, Now: availabilityStart})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, tt.kind) {
				t.Errorf("Expected %v, got %v", tt.kind, err)
			}
			var me *ManifestError
			if !errors.As(err, &me) {
				t.Errorf("Expected *ManifestError, got %T", err)
			}
		})
	}
}

func TestParseDASH_PlanIsValid(t *testing.T) {
	plan, err := ParseDASH([]byte(liveMPD), DASHOptions{
		Allow: []string{"audio=96000"},
		Now:   availabilityStart.Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := plan.Validate(); err != nil {
		t.Errorf("Expected valid plan, got %v", err)
	}
	if errors.Is(plan.Validate(), segment.ErrInvalidPlan) {
		t.Error("Unexpected invalid plan error")
	}
	if plan.HasSegmentMap() {
		t.Error("Expected DASH plan without explicit segment map")
	}
}
