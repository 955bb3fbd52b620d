// Package feed turns an RSS-style byte stream (or its JSON transport
// equivalent) into show metadata plus an ordered batch of episode records.
//
// The parser is a single forward pass over the XML token stream: no DOM, no
// backtracking. Unrecognized subtrees are skipped with a depth counter, so
// unknown namespaces and malformed optional sections never stall progress.
// In incremental mode the parse stops at the first already-known item; feeds
// are assumed to list items newest first, so the first duplicate acts as a
// watermark and the rest of the stream is abandoned unread. Feeds violating
// that ordering will have out-of-order new items picked up only by a later
// full read; this is a deliberate trade, not an oversight.
package feed

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/html/charset"

	"github.com/soundhaven/feedsync/internal/models"
)

const (
	rootTag    = "rss"
	channelTag = "channel"
	itemTag    = "item"

	itunesPrefix = "itunes"
	itunesNS     = "http://www.itunes.com/dtds/podcast-1.0.dtd"
)

// AdmitFunc is the merge engine's single-item admit check. It reports whether
// the episode is new to the store. A nil AdmitFunc admits everything.
type AdmitFunc func(ep *models.Episode) (bool, error)

// Options control one parse pass.
type Options struct {
	// FullRead disables the early-exit optimization: every item in the
	// document is processed regardless of duplicates. Used for backfill.
	FullRead bool
}

// Parser is the streaming tag-dispatch feed parser. Safe for concurrent use;
// all mutable parse state lives in a per-call session.
type Parser struct {
	log logrus.FieldLogger
}

func NewParser(log logrus.FieldLogger) *Parser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Parser{log: log}
}

// Parse consumes a feed document from r, mutating show's metadata in place
// and returning the episodes admitted during this pass, in document order.
//
// Show metadata mutated before a failure remains visible: the parse is not
// transactional at the document level, only the later merge commit is.
// Cancellation is caller-driven by closing r, which surfaces here as an I/O
// error.
func (p *Parser) Parse(r io.Reader, show *models.Show, admit AdmitFunc, opts Options) ([]*models.Episode, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	sess := newSession(p.log.WithField("feed_url", show.FeedURL))

	root, err := nextStart(dec)
	if err != nil {
		return nil, newStructuralError("missing root element", err)
	}
	if root.Name.Local != rootTag {
		return nil, newStructuralError("root element is not <rss>", nil)
	}

	var episodes []*models.Episode
	sawChannel := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return episodes, wrapStreamError(err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local == channelTag {
			sawChannel = true
			eps, err := p.readChannel(dec, show, sess, admit, opts)
			episodes = append(episodes, eps...)
			if err != nil {
				if errors.Is(err, errStopParsing) {
					return episodes, nil
				}
				return episodes, err
			}
		} else if err := skipSubtree(dec); err != nil {
			return episodes, wrapStreamError(err)
		}
	}

	if !sawChannel {
		return episodes, newStructuralError("missing channel element", nil)
	}
	return episodes, nil
}

// errStopParsing is the internal signal for the incremental short-circuit:
// the first non-admitted item marks everything after it as already known.
var errStopParsing = errors.New("stop parsing")

// readChannel dispatches the channel's child tags. Title and link keep their
// first non-empty value; descriptions run through the session's HTML
// detector; items delegate to readEpisode and the admit check.
func (p *Parser) readChannel(dec *xml.Decoder, show *models.Show, sess *session, admit AdmitFunc, opts Options) ([]*models.Episode, error) {
	var episodes []*models.Episode

	for {
		tok, err := dec.Token()
		if err != nil {
			return episodes, wrapStreamError(err)
		}

		switch se := tok.(type) {
		case xml.EndElement:
			if se.Name.Local == channelTag {
				return episodes, nil
			}
		case xml.StartElement:
			if isExtensionTag(se.Name) {
				if err := p.readShowExtensionTag(dec, se, show, sess); err != nil {
					return episodes, err
				}
				continue
			}

			switch se.Name.Local {
			case "title":
				text, err := readText(dec)
				if err != nil {
					return episodes, wrapStreamError(err)
				}
				if show.Title == "" && text != "" {
					show.Title = text
				}
			case "link":
				text, err := readText(dec)
				if err != nil {
					return episodes, wrapStreamError(err)
				}
				if show.Link == "" && text != "" {
					show.Link = text
				}
			case "description":
				text, err := readText(dec)
				if err != nil {
					return episodes, wrapStreamError(err)
				}
				show.Description = sess.cleanDescription(text)
			case "image":
				imageURL, err := readImage(dec, se)
				if err != nil {
					return episodes, wrapStreamError(err)
				}
				if isValidURL(imageURL) {
					show.ImageURL = imageURL
				}
			case "language":
				if show.Language, err = readText(dec); err != nil {
					return episodes, wrapStreamError(err)
				}
			case "copyright":
				if show.Copyright, err = readText(dec); err != nil {
					return episodes, wrapStreamError(err)
				}
			case "category":
				text, err := readText(dec)
				if err != nil {
					return episodes, wrapStreamError(err)
				}
				if show.Category == "" && text != "" {
					show.Category = text
				}
			case itemTag:
				ep, err := p.readEpisode(dec, show, sess)
				if err != nil {
					return episodes, err
				}
				if ep == nil {
					continue // no resolvable media URL, discarded
				}
				admitted := true
				if admit != nil {
					if admitted, err = admit(ep); err != nil {
						return episodes, err
					}
				}
				if admitted {
					episodes = append(episodes, ep)
				} else if !opts.FullRead {
					// Items are assumed newest-first: the first known item is
					// the watermark, everything below it is older.
					return episodes, errStopParsing
				}
			default:
				if err := skipSubtree(dec); err != nil {
					return episodes, wrapStreamError(err)
				}
			}
		}
	}
}

// readShowExtensionTag handles itunes-namespaced channel tags. Extension
// names share locals with core tags (image, summary), hence the separate
// dispatch.
func (p *Parser) readShowExtensionTag(dec *xml.Decoder, se xml.StartElement, show *models.Show, sess *session) error {
	switch se.Name.Local {
	case "image":
		if href := attrValue(se, "href"); isValidURL(href) {
			show.ImageURL = href
		}
		return wrapStreamError(skipSubtree(dec))
	case "summary":
		text, err := readText(dec)
		if err != nil {
			return wrapStreamError(err)
		}
		if show.Description == "" && text != "" {
			show.Description = sess.cleanDescription(text)
		}
		return nil
	default:
		return wrapStreamError(skipSubtree(dec))
	}
}

// readEpisode is the item sub-machine: identical depth-tracked dispatch,
// scoped to one item subtree, populating one episode record. Returns nil
// (not an error) when the item lacks a resolvable media URL.
func (p *Parser) readEpisode(dec *xml.Decoder, show *models.Show, sess *session) (*models.Episode, error) {
	ep := &models.Episode{
		ShowID:     show.ID,
		DurationMs: models.DurationUnknown,
	}
	hasMediaURL := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, wrapStreamError(err)
		}

		switch se := tok.(type) {
		case xml.EndElement:
			if se.Name.Local != itemTag {
				continue
			}
			// Publish date is always present on a finished episode.
			if ep.PublishedAt.IsZero() {
				ep.PublishedAt = time.Now()
			}
			if !hasMediaURL {
				return nil, nil
			}
			return ep, nil
		case xml.StartElement:
			if isExtensionTag(se.Name) {
				if err := p.readEpisodeExtensionTag(dec, se, ep, sess); err != nil {
					return nil, err
				}
				continue
			}

			switch se.Name.Local {
			case "title":
				if ep.Title, err = readText(dec); err != nil {
					return nil, wrapStreamError(err)
				}
			case "link":
				if ep.PageLink, err = readText(dec); err != nil {
					return nil, wrapStreamError(err)
				}
			case "author":
				if ep.Author, err = readText(dec); err != nil {
					return nil, wrapStreamError(err)
				}
			case "description":
				text, err := readText(dec)
				if err != nil {
					return nil, wrapStreamError(err)
				}
				if ep.Description == "" {
					ep.Description = sess.cleanDescription(text)
				}
			case "pubDate":
				raw, err := readText(dec)
				if err != nil {
					return nil, wrapStreamError(err)
				}
				if t, ok := sess.parseDate(raw); ok {
					ep.PublishedAt = ClampToNow(t)
				} else {
					sess.reportOnce("pubdate", raw)
				}
			case "enclosure":
				enc := resolveEnclosure(se)
				if isValidURL(enc.URL) {
					ep.MediaURL = enc.URL
					hasMediaURL = true
				}
				ep.FileSize = enc.FileSize
				ep.MediaKind = enc.Kind
				if err := skipSubtree(dec); err != nil {
					return nil, wrapStreamError(err)
				}
			default:
				if err := skipSubtree(dec); err != nil {
					return nil, wrapStreamError(err)
				}
			}
		}
	}
}

// readEpisodeExtensionTag handles itunes-namespaced item tags: duration,
// image, summary. The summary only fills a still-empty description; an
// earlier plain description always wins.
func (p *Parser) readEpisodeExtensionTag(dec *xml.Decoder, se xml.StartElement, ep *models.Episode, sess *session) error {
	switch se.Name.Local {
	case "duration":
		raw, err := readText(dec)
		if err != nil {
			return wrapStreamError(err)
		}
		ep.DurationMs = ParseDuration(raw)
		if ep.DurationMs == models.DurationUnknown && raw != "" {
			sess.reportOnce("duration", raw)
		}
		return nil
	case "image":
		if href := attrValue(se, "href"); isValidURL(href) {
			ep.ArtworkURL = href
		}
		return wrapStreamError(skipSubtree(dec))
	case "summary":
		text, err := readText(dec)
		if err != nil {
			return wrapStreamError(err)
		}
		if ep.Description == "" && text != "" {
			ep.Description = sess.cleanDescription(text)
		}
		return nil
	default:
		return wrapStreamError(skipSubtree(dec))
	}
}

// isExtensionTag reports whether the tag carries the itunes-style extension
// prefix, whether or not the feed declared the namespace properly.
func isExtensionTag(name xml.Name) bool {
	return name.Space == itunesNS || name.Space == itunesPrefix
}

// skipSubtree consumes and discards the current element's entire subtree,
// tracking open/close depth until balanced. Called with the start tag already
// consumed. This is what guarantees forward progress over unknown tags.
func skipSubtree(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// readText collects the character data of the current element up to its
// matching end tag, discarding any stray child elements.
func readText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 1 {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// readImage accepts either an attribute-carried URL (href/url) or a nested
// <url> sub-element. Invalid URLs are dropped silently.
func readImage(dec *xml.Decoder, se xml.StartElement) (string, error) {
	imageURL := attrValue(se, "href")
	if imageURL == "" {
		imageURL = attrValue(se, "url")
	}

	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 1 && t.Name.Local == "url" {
				nested, err := readText(dec)
				if err != nil {
					return "", err
				}
				if nested != "" {
					imageURL = nested
				}
				continue // readText consumed the matching end tag
			}
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return imageURL, nil
}

func attrValue(se xml.StartElement, local string) string {
	for _, attr := range se.Attr {
		if attr.Name.Local == local {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}

// nextStart advances to the next start element.
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// wrapStreamError classifies a decoder error: XML syntax problems are
// structural (mismatched nesting aborts the whole parse), everything else is
// a transport failure and passes through unchanged.
func wrapStreamError(err error) error {
	if err == nil {
		return nil
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return newStructuralError("broken tag nesting", err)
	}
	if err == io.EOF {
		return newStructuralError("unexpected end of document", err)
	}
	return err
}
