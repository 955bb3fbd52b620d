package feed

import (
	"strings"

	"golang.org/x/net/html"
)

// StripHTML extracts the plain-text content of an HTML fragment. Tags are
// dropped, entities are decoded, text nodes are concatenated. Best effort
// only; this is not a sanitizer.
func StripHTML(fragment string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var sb strings.Builder
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF for well-formed input; for anything else we keep what
			// was extracted so far.
			return strings.TrimSpace(sb.String())
		case html.TextToken:
			sb.Write(tokenizer.Text())
		}
	}
}

// LooksLikeHTML reports whether stripping the fragment changes it, i.e. it
// carries markup or entities. Sniffed once per feed on the first description
// and cached for the rest of the document.
func LooksLikeHTML(fragment string) bool {
	return StripHTML(fragment) != strings.TrimSpace(fragment)
}
