// Package segment describes the addressable segment space of an adaptive stream.
package segment

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidPlan is returned by Validate when a plan breaks its invariants.
var ErrInvalidPlan = errors.New("invalid segment plan")

// Plan is the addressable segment space of one manifest, computed once at parse time.
// A Plan is a value: parsers return it fully populated and nothing mutates it afterwards.
// Callers that need a fresh live edge must fetch and parse the manifest again.
type Plan struct {
	// IsDynamic is true for live streams with no fixed end.
	IsDynamic bool

	// SegmentDuration is the nominal duration of one segment in Timescale units.
	SegmentDuration int64

	// Timescale is the number of ticks per second (always >= 1).
	Timescale int64

	// StartNumber is the lowest addressable segment number.
	StartNumber int64

	// EndNumber is the highest addressable segment number.
	// For dynamic plans it is the live edge at ParsedAt, not a hard ceiling.
	EndNumber int64

	// ComparisonStartNumber is the lowest segment still inside the time-shift
	// buffer. Equal to StartNumber for static plans.
	ComparisonStartNumber int64

	// MediaTemplate is a URL template containing a $Number$ placeholder.
	MediaTemplate string

	// BaseURL is used to resolve relative segment references.
	BaseURL string

	// ParsedAt is the instant the plan was computed.
	ParsedAt time.Time

	segmentMap map[int64]string
}

// WithSegmentMap returns a copy of p that resolves the given segment numbers to
// explicit URLs before falling back to the template.
func (p Plan) WithSegmentMap(m map[int64]string) Plan {
	cp := make(map[int64]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	p.segmentMap = cp
	return p
}

// Lookup returns the explicit URL recorded for number, if any.
func (p Plan) Lookup(number int64) (string, bool) {
	u, ok := p.segmentMap[number]
	return u, ok
}

// HasSegmentMap reports whether the plan carries explicit segment URLs.
func (p Plan) HasSegmentMap() bool {
	return len(p.segmentMap) > 0
}

// SegmentCount returns the number of segments between StartNumber and EndNumber inclusive.
func (p Plan) SegmentCount() int64 {
	return p.EndNumber - p.StartNumber + 1
}

// SegmentSeconds returns the nominal segment duration in seconds.
func (p Plan) SegmentSeconds() float64 {
	return float64(p.SegmentDuration) / float64(p.Timescale)
}

// Contains reports whether number lies within the seekable window.
func (p Plan) Contains(number int64) bool {
	return number >= p.ComparisonStartNumber && number <= p.EndNumber
}

// Validate checks the plan invariants.
func (p Plan) Validate() error {
	switch {
	case p.Timescale < 1:
		return fmt.Errorf("%w: timescale %d < 1", ErrInvalidPlan, p.Timescale)
	case p.SegmentDuration <= 0:
		return fmt.Errorf("%w: segment duration %d <= 0", ErrInvalidPlan, p.SegmentDuration)
	case p.EndNumber < p.StartNumber:
		return fmt.Errorf("%w: end number %d before start number %d", ErrInvalidPlan, p.EndNumber, p.StartNumber)
	case p.ComparisonStartNumber < p.StartNumber || p.ComparisonStartNumber > p.EndNumber:
		return fmt.Errorf("%w: comparison start %d outside [%d, %d]",
			ErrInvalidPlan, p.ComparisonStartNumber, p.StartNumber, p.EndNumber)
	case p.MediaTemplate == "" && len(p.segmentMap) == 0:
		return fmt.Errorf("%w: no media template or segment map", ErrInvalidPlan)
	}
	return nil
}
