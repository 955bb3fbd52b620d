package feed

import (
	"strings"
	"time"
)

// DateHint remembers which publish-date format last succeeded within one
// parse session, so the several hundred items of a typical feed are not each
// run through the whole format table.
type DateHint int

// NoDateHint means no format has succeeded in this session yet.
const NoDateHint DateHint = -1

// dateFormats is the fixed priority order for publish-date parsing. RFC 1123
// variants come first because that is what the overwhelming majority of feeds
// emit.
var dateFormats = []string{
	time.RFC1123Z,                       // Mon, 02 Jan 2006 15:04:05 -0700
	time.RFC1123,                        // Mon, 02 Jan 2006 15:04:05 MST
	"Mon, 2 Jan 2006 15:04:05 -0700",    // single-digit day
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",      // missing seconds
	time.RFC3339,                        // 2006-01-02T15:04:05Z07:00
	"2006-01-02T15:04:05-0700",          // RFC 3339 without the colon
	"2 Jan 2006 15:04:05 -0700",         // missing weekday
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a raw publish-date token. The hinted format is tried
// first; on miss every known format is tried in priority order and the first
// success becomes the new hint. The third return value is false when no
// format matched, in which case the caller must default rather than abort.
func ParseDate(raw string, hint DateHint) (time.Time, DateHint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, hint, false
	}

	if hint >= 0 && int(hint) < len(dateFormats) {
		if t, err := time.Parse(dateFormats[hint], raw); err == nil {
			return t, hint, true
		}
	}

	for i, format := range dateFormats {
		if DateHint(i) == hint {
			continue // already tried
		}
		if t, err := time.Parse(format, raw); err == nil {
			return t, DateHint(i), true
		}
	}

	return time.Time{}, hint, false
}

// ClampToNow caps a timestamp at the current time. Feeds occasionally carry
// publish dates in the future; persisted episodes never do.
func ClampToNow(t time.Time) time.Time {
	if now := time.Now(); t.After(now) {
		return now
	}
	return t
}
