// Package playlist synthesizes HLS media playlists from segment plans.
package playlist

import (
	"fmt"
	"math"
	"strings"

	"github.com/agleyzer/dash2hls/internal/segment"
)

// Generate renders an HLS media playlist referencing up to count segments of
// plan starting at start. Segments past plan.EndNumber are never emitted.
// Static plans are closed with #EXT-X-ENDLIST; dynamic plans are left open.
func Generate(plan segment.Plan, start int64, count int) string {
	durationSeconds := plan.SegmentSeconds()

	var b strings.Builder

	// HLS playlist header
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", start))
	b.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", TargetDuration(durationSeconds)))

	for i := 0; i < count; i++ {
		number := start + int64(i)
		if number > plan.EndNumber {
			break
		}

		b.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", durationSeconds))
		b.WriteString(plan.SegmentURL(number))
		b.WriteString("\n")
	}

	if !plan.IsDynamic {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

// TargetDuration returns the EXT-X-TARGETDURATION value for segments of the
// given length: the duration rounded up to a whole number of seconds.
func TargetDuration(segmentSeconds float64) int {
	return int(math.Ceil(segmentSeconds))
}

// EntryCount returns how many segments Generate emits for the given window.
func EntryCount(plan segment.Plan, start int64, count int) int {
	available := plan.EndNumber - start + 1
	if available < 0 {
		available = 0
	}
	if int64(count) < available {
		return max(count, 0)
	}
	return int(available)
}
