package feed

import (
	"time"

	"github.com/sirupsen/logrus"
)

// session carries the mutable per-parse state: the date-format hint, the
// cached HTML decision, and which error categories have already been logged
// for this document. One session per Parse call keeps concurrent parses
// isolated; nothing here is process-wide.
type session struct {
	log logrus.FieldLogger

	dateHint DateHint

	htmlChecked  bool
	htmlDetected bool

	reported map[string]bool
}

func newSession(log logrus.FieldLogger) *session {
	return &session{
		log:      log,
		dateHint: NoDateHint,
		reported: make(map[string]bool),
	}
}

// cleanDescription runs a description field through the HTML detector. The
// first call decides whether this feed's descriptions are HTML-tagged;
// subsequent calls reuse that decision instead of re-sniffing per item.
func (s *session) cleanDescription(raw string) string {
	if !s.htmlChecked {
		s.htmlDetected = LooksLikeHTML(raw)
		s.htmlChecked = true
	}
	if s.htmlDetected {
		return StripHTML(raw)
	}
	return raw
}

// parseDate parses a publish-date token through the session's format hint.
func (s *session) parseDate(raw string) (time.Time, bool) {
	parsed, hint, ok := ParseDate(raw, s.dateHint)
	s.dateHint = hint
	return parsed, ok
}

// reportOnce logs a recoverable field-parse failure at most once per document
// per category, so a feed with hundreds of equally broken items does not
// flood the log.
func (s *session) reportOnce(category, raw string) {
	if s.reported[category] {
		return
	}
	s.reported[category] = true
	s.log.WithFields(logrus.Fields{
		"category": category,
		"value":    raw,
	}).Warn("unparsable field, using default")
}
