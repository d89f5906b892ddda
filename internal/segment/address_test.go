package segment

import (
	"math"
	"testing"
)

func TestSegmentURL_Template(t *testing.T) {
	p := staticPlan()
	got := p.SegmentURL(42)
	want := "https://example.com/dash/audio=96000-42.m4s"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestSegmentURL_AbsoluteTemplate(t *testing.T) {
	p := staticPlan()
	p.MediaTemplate = "https://cdn.example.com/seg/$Number%05d$.m4s"
	got := p.SegmentURL(42)
	want := "https://cdn.example.com/seg/00042.m4s"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestSegmentURL_MapThenTemplate(t *testing.T) {
	p := Plan{
		SegmentDuration:       6,
		Timescale:             1,
		StartNumber:           100,
		EndNumber:             101,
		ComparisonStartNumber: 100,
		MediaTemplate:         "seg-$Number$.aac?token=abc",
		BaseURL:               "https://example.com/hls/playlist.m3u8",
	}.WithSegmentMap(map[int64]string{
		100: "https://other.example.com/x.aac",
		101: "https://example.com/hls/seg-101.aac?token=abc",
	})

	if got := p.SegmentURL(100); got != "https://other.example.com/x.aac" {
		t.Errorf("Expected mapped URL, got %s", got)
	}
	if got := p.SegmentURL(150); got != "https://example.com/hls/seg-150.aac?token=abc" {
		t.Errorf("Expected templated fallback, got %s", got)
	}
}

func TestSegmentURL_NoBase(t *testing.T) {
	p := staticPlan()
	p.BaseURL = ""
	if got := p.SegmentURL(3); got != "audio=96000-3.m4s" {
		t.Errorf("Expected bare expansion, got %s", got)
	}
}

func TestSeekToOffset_Static(t *testing.T) {
	p := staticPlan()
	tests := []struct {
		name   string
		offset float64
		want   int64
	}{
		{"zero offset is start", 0, 1},
		{"within first segment", 3.9, 1},
		{"exact boundary", 4, 2},
		{"one minute", 60, 16},
		{"negative treated as zero", -10, 1},
		{"past the end is not clamped", 4000, 1001},
		{"huge offset saturates", 1e20, math.MaxInt64 - 449},
		{"infinite offset saturates", math.Inf(1), math.MaxInt64 - 449},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SeekToOffset(tt.offset); got != tt.want {
				t.Errorf("SeekToOffset(%v) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}
}

func TestSeekToOffset_StaticHugeOffsetIsPastEnd(t *testing.T) {
	p := staticPlan()
	for _, offset := range []float64{1e18, 1e20, 1e300} {
		if got := p.SeekToOffset(offset); got <= p.EndNumber {
			t.Errorf("SeekToOffset(%v) = %d, want past end %d", offset, got, p.EndNumber)
		}
	}
}

func TestSeekToOffset_Dynamic(t *testing.T) {
	p := dynamicPlan()
	tests := []struct {
		name   string
		offset float64
		want   int64
	}{
		{"live edge", 0, 1000},
		{"one segment behind", 8, 999},
		{"partial segment", 15.9, 999},
		{"ten minutes behind", 600, 925},
		{"beyond buffer clamps", 1e9, 550},
		{"huge offset clamps", 1e20, 550},
		{"infinite offset clamps", math.Inf(1), 550},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SeekToOffset(tt.offset); got != tt.want {
				t.Errorf("SeekToOffset(%v) = %d, want %d", tt.offset, got, tt.want)
			}
		})
	}
}

func TestSeekToOffset_DynamicStaysInWindow(t *testing.T) {
	p := dynamicPlan()
	for offset := 0.0; offset < 20000; offset += 37.5 {
		got := p.SeekToOffset(offset)
		if !p.Contains(got) {
			t.Fatalf("SeekToOffset(%v) = %d outside [%d, %d]", offset, got, p.ComparisonStartNumber, p.EndNumber)
		}
	}
}
