package feed

import (
	"encoding/xml"
	"net/url"
	"strconv"
	"strings"

	"github.com/soundhaven/feedsync/internal/models"
)

// Enclosure is the resolved media reference of one feed item.
type Enclosure struct {
	URL      string
	FileSize int64 // bytes; 0 when the feed declared none or a bogus value
	Kind     models.MediaKind
}

// resolveEnclosure extracts url/length/type from an enclosure start tag.
// A zero or negative declared length is treated as unknown: some feeds tag
// every enclosure with length 0.
func resolveEnclosure(se xml.StartElement) Enclosure {
	var rawURL, rawLength, rawType string
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "url":
			rawURL = attr.Value
		case "length":
			rawLength = attr.Value
		case "type":
			rawType = attr.Value
		}
	}

	enc := Enclosure{
		URL:  strings.TrimSpace(rawURL),
		Kind: KindFromMIME(rawType),
	}
	if size, err := strconv.ParseInt(strings.TrimSpace(rawLength), 10, 64); err == nil && size > 0 {
		enc.FileSize = size
	}
	return enc
}

// KindFromMIME classifies an enclosure MIME type. Anything that is not
// recognizably video is treated as audio.
func KindFromMIME(mimeType string) models.MediaKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "video/") {
		return models.MediaKindVideo
	}
	return models.MediaKindAudio
}

// isValidURL reports whether s is an absolute http(s) URL.
func isValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
