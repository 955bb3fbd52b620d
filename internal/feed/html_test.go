package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "The economy explained.", StripHTML("<p>The <b>economy</b> explained.</p>"))
	assert.Equal(t, "plain text stays", StripHTML("plain text stays"))
	assert.Equal(t, "a & b", StripHTML("a &amp; b"))
	assert.Equal(t, "", StripHTML(""))
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<p>hello</p>"))
	assert.True(t, LooksLikeHTML("tagged &amp; encoded"))
	assert.False(t, LooksLikeHTML("just words here"))
}

func TestSession_CachesHTMLDecision(t *testing.T) {
	sess := newSession(discardLogger())

	// First description decides: this feed is HTML-tagged.
	assert.Equal(t, "first", sess.cleanDescription("<p>first</p>"))

	// Later plain-text descriptions are still run through the stripper
	// because the cached decision stands for the whole document.
	assert.True(t, sess.htmlDetected)
	assert.Equal(t, "second", sess.cleanDescription("second"))
}

func TestSession_PlainFeedSkipsStripping(t *testing.T) {
	sess := newSession(discardLogger())

	assert.Equal(t, "no markup here", sess.cleanDescription("no markup here"))
	assert.False(t, sess.htmlDetected)

	// Markup appearing later is left alone; the sniff happened once.
	assert.Equal(t, "<b>late</b>", sess.cleanDescription("<b>late</b>"))
}
