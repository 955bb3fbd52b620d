package feed

import (
	"strconv"
	"strings"

	"github.com/soundhaven/feedsync/internal/models"
)

// ParseDuration normalizes an itunes-style duration token to milliseconds.
//
// Tokens with a ':' separator are read as HH:MM:SS or MM:SS. Fields are
// summed arithmetically rather than parsed as a clock time, so out-of-range
// fields like "75:30" roll over the way feeds in the wild expect. A bare
// token is taken as a count of seconds. Anything else yields
// models.DurationUnknown (-1); this function never fails the surrounding
// parse.
func ParseDuration(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DurationUnknown
	}

	if strings.ContainsRune(raw, ':') {
		parts := strings.Split(raw, ":")
		if len(parts) > 3 {
			return models.DurationUnknown
		}
		var seconds int64
		for _, part := range parts {
			field, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil || field < 0 {
				return models.DurationUnknown
			}
			seconds = seconds*60 + field
		}
		return seconds * 1000
	}

	// Some feeds tag duration as a plain number of seconds.
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return models.DurationUnknown
	}
	return seconds * 1000
}
