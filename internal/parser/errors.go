package parser

import (
	"errors"
	"fmt"
)

// Manifest error kinds. Match them with errors.Is.
var (
	ErrNoMatchingRepresentation = errors.New("no matching representation")
	ErrMissingSegmentTemplate   = errors.New("missing segment template")
	ErrNoSegments               = errors.New("no segments")
	ErrUnsupportedNaming        = errors.New("unsupported segment naming")
	ErrMalformedDuration        = errors.New("malformed duration")
	ErrMalformedTimestamp       = errors.New("malformed timestamp")
	ErrMissingAvailabilityStart = errors.New("missing availability start time")
	ErrMasterPlaylist           = errors.New("master playlist")
	ErrMalformedManifest        = errors.New("malformed manifest")
	ErrUnknownFormat            = errors.New("unknown manifest format")
)

// ManifestError reports why a manifest could not be turned into a segment plan.
type ManifestError struct {
	// Kind is one of the Err* values above (or segment.ErrInvalidPlan).
	Kind error
	// Detail describes the offending element or value.
	Detail string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ManifestError) Error() string {
	msg := "manifest: " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind.
func (e *ManifestError) Is(target error) bool {
	return target == e.Kind
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

func manifestErr(kind error, format string, args ...any) *ManifestError {
	return &ManifestError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
