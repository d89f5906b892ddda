package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Format identifies a manifest syntax.
type Format string

const (
	FormatAuto Format = "auto"
	FormatDASH Format = "dash"
	FormatHLS  Format = "hls"
)

// ParseFormat converts a user supplied format name. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatDASH, FormatHLS:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want auto, dash or hls)", s)
	}
}

// DetectFormat guesses the manifest syntax from its body, falling back to the
// content type and the URL extension.
func DetectFormat(data []byte, contentType, manifestURL string) (Format, error) {
	body := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")))
	switch {
	case bytes.HasPrefix(body, []byte("#EXTM3U")):
		return FormatHLS, nil
	case bytes.HasPrefix(body, []byte("<?xml")), bytes.HasPrefix(body, []byte("<MPD")):
		return FormatDASH, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "dash+xml"):
		return FormatDASH, nil
	case strings.Contains(ct, "mpegurl"):
		return FormatHLS, nil
	}

	if u, err := url.Parse(manifestURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".mpd":
			return FormatDASH, nil
		case ".m3u8", ".m3u":
			return FormatHLS, nil
		}
	}

	return "", manifestErr(ErrUnknownFormat, "%s", manifestURL)
}
