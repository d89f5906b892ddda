// Package variant defines the variant streams of an HLS master playlist.
package variant

// Variant represents a single variant stream in an HLS master playlist.
// For audio streams each variant is typically one bitrate.
type Variant struct {
	// Bandwidth is the peak segment bitrate in bits per second
	Bandwidth int

	// Codecs is the codec string (e.g., "mp4a.40.2")
	// Empty string if not specified in master playlist
	Codecs string

	// PlaylistURL is the absolute URL of the variant's media playlist
	PlaylistURL string
}

// Select returns the highest-bandwidth variant not above maxBandwidth.
// A maxBandwidth of 0 means no limit. When every variant exceeds the limit the
// lowest-bandwidth variant is returned. ok is false only for an empty list.
func Select(variants []Variant, maxBandwidth int) (v Variant, ok bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}

	best, lowest := -1, 0
	for i, candidate := range variants {
		if candidate.Bandwidth < variants[lowest].Bandwidth {
			lowest = i
		}
		if maxBandwidth > 0 && candidate.Bandwidth > maxBandwidth {
			continue
		}
		if best < 0 || candidate.Bandwidth > variants[best].Bandwidth {
			best = i
		}
	}

	if best < 0 {
		return variants[lowest], true
	}
	return variants[best], true
}
