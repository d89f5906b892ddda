package stream

import (
	"strings"

	"github.com/agleyzer/dash2hls/internal/parser"
)

// Connection is one delivery endpoint offered for a stream.
type Connection struct {
	Href           string `yaml:"href" json:"href"`
	TransferFormat string `yaml:"transfer_format" json:"transfer_format"`
}

// SelectConnection returns the first connection whose transfer format matches
// prefer. With an auto preference the first connection is returned.
func SelectConnection(conns []Connection, prefer parser.Format) (Connection, bool) {
	for _, c := range conns {
		if prefer == parser.FormatAuto || prefer == "" || strings.EqualFold(c.TransferFormat, string(prefer)) {
			return c, true
		}
	}
	return Connection{}, false
}
