package feed

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundhaven/feedsync/internal/models"
)

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Planet Currency</title>
    <title>Duplicate Title Ignored</title>
    <link>https://example.com/show</link>
    <description><![CDATA[<p>The <b>economy</b> explained.</p>]]></description>
    <image>
      <url>https://example.com/cover.jpg</url>
    </image>
    <language>en-us</language>
    <copyright>2024 Example Media</copyright>
    <category>Business</category>
    <ttl>60</ttl>
    <unknownBlock><nested><deeper/></nested></unknownBlock>
    <item>
      <title>Episode Three</title>
      <link>https://example.com/ep3</link>
      <description><![CDATA[<p>Third episode</p>]]></description>
      <author>alice@example.com</author>
      <pubDate>Wed, 03 Jan 2024 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep3.mp3" length="34000000" type="audio/mpeg"/>
      <itunes:duration>01:02:03</itunes:duration>
      <itunes:image href="https://example.com/ep3.jpg"/>
      <itunes:summary>Summary loses to the earlier description</itunes:summary>
      <guid>ep3-guid</guid>
    </item>
    <item>
      <title>Episode Two</title>
      <pubDate>Tue, 02 Jan 2024 10:00:00 +0000</pubDate>
      <enclosure url="https://cdn.example.com/ep2.mp4" length="0" type="video/mp4"/>
      <itunes:duration>90</itunes:duration>
      <itunes:summary><![CDATA[<em>Filled from summary</em>]]></itunes:summary>
    </item>
    <item>
      <title>No Media Item</title>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Episode One</title>
      <pubDate>totally bogus date</pubDate>
      <enclosure url="https://cdn.example.com/ep1.mp3" length="12000000" type="audio/mpeg"/>
      <itunes:duration>bogus</itunes:duration>
    </item>
  </channel>
</rss>`

func parseSample(t *testing.T, admit AdmitFunc, opts Options) (*models.Show, []*models.Episode, error) {
	t.Helper()
	show := &models.Show{FeedURL: "https://example.com/feed.xml"}
	eps, err := NewParser(discardLogger()).Parse(strings.NewReader(sampleFeed), show, admit, opts)
	return show, eps, err
}

func TestParse_ShowMetadata(t *testing.T) {
	show, _, err := parseSample(t, nil, Options{FullRead: true})
	require.NoError(t, err)

	assert.Equal(t, "Planet Currency", show.Title, "first non-empty title wins")
	assert.Equal(t, "https://example.com/show", show.Link)
	assert.Equal(t, "The economy explained.", show.Description, "HTML stripped")
	assert.Equal(t, "https://example.com/cover.jpg", show.ImageURL)
	assert.Equal(t, "en-us", show.Language)
	assert.Equal(t, "2024 Example Media", show.Copyright)
	assert.Equal(t, "Business", show.Category)
}

func TestParse_Episodes(t *testing.T) {
	_, eps, err := parseSample(t, nil, Options{FullRead: true})
	require.NoError(t, err)
	require.Len(t, eps, 3, "item without media URL is discarded")

	three := eps[0]
	assert.Equal(t, "Episode Three", three.Title)
	assert.Equal(t, "https://example.com/ep3", three.PageLink)
	assert.Equal(t, "Third episode", three.Description, "cached HTML decision strips item descriptions")
	assert.Equal(t, "alice@example.com", three.Author)
	assert.Equal(t, "https://cdn.example.com/ep3.mp3", three.MediaURL)
	assert.Equal(t, int64(34000000), three.FileSize)
	assert.Equal(t, models.MediaKindAudio, three.MediaKind)
	assert.Equal(t, int64(3723000), three.DurationMs)
	assert.Equal(t, "https://example.com/ep3.jpg", three.ArtworkURL)
	assert.True(t, three.PublishedAt.Equal(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)))

	two := eps[1]
	assert.Equal(t, "Filled from summary", two.Description, "summary fills an empty description")
	assert.Equal(t, int64(0), two.FileSize, "length 0 is unknown, never recorded as a size")
	assert.Equal(t, models.MediaKindVideo, two.MediaKind)
	assert.Equal(t, int64(90000), two.DurationMs)

	one := eps[2]
	assert.Equal(t, models.DurationUnknown, one.DurationMs)
	assert.False(t, one.PublishedAt.IsZero(), "unparsable date defaults to now")
	assert.False(t, one.PublishedAt.After(time.Now()))
}

func TestParse_SummaryNeverOverwritesDescription(t *testing.T) {
	_, eps, err := parseSample(t, nil, Options{FullRead: true})
	require.NoError(t, err)
	assert.Equal(t, "Third episode", eps[0].Description)
}

func shortFeed(urls ...string) string {
	var sb strings.Builder
	sb.WriteString(`<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd"><channel><title>Short</title>`)
	day := 10
	for _, u := range urls {
		sb.WriteString(`<item><title>ep</title><pubDate>Wed, ` +
			time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC).Format("02 Jan 2006 15:04:05 +0000") +
			`</pubDate><enclosure url="` + u + `" length="100" type="audio/mpeg"/></item>`)
		day--
	}
	sb.WriteString(`</channel></rss>`)
	return sb.String()
}

func TestParse_IncrementalShortCircuit(t *testing.T) {
	// Newest-first feed: items 1 and 2 are new, item 3 is already known,
	// item 4 would be new but must never be inspected.
	doc := shortFeed(
		"https://cdn.example.com/1.mp3",
		"https://cdn.example.com/2.mp3",
		"https://cdn.example.com/3.mp3",
		"https://cdn.example.com/4.mp3",
	)

	var seen []string
	admit := func(ep *models.Episode) (bool, error) {
		seen = append(seen, ep.MediaURL)
		return !strings.HasSuffix(ep.MediaURL, "3.mp3"), nil
	}

	show := &models.Show{FeedURL: "https://example.com/feed.xml"}
	eps, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, admit, Options{FullRead: false})
	require.NoError(t, err)

	assert.Len(t, eps, 2)
	assert.Len(t, seen, 3, "parsing stops at the first known item")
}

func TestParse_FullReadIgnoresWatermark(t *testing.T) {
	doc := shortFeed(
		"https://cdn.example.com/1.mp3",
		"https://cdn.example.com/3.mp3",
		"https://cdn.example.com/4.mp3",
	)

	admit := func(ep *models.Episode) (bool, error) {
		return !strings.HasSuffix(ep.MediaURL, "3.mp3"), nil
	}

	show := &models.Show{FeedURL: "https://example.com/feed.xml"}
	eps, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, admit, Options{FullRead: true})
	require.NoError(t, err)
	assert.Len(t, eps, 2, "full read processes every item past duplicates")
}

func TestParse_AdmitErrorPropagates(t *testing.T) {
	doc := shortFeed("https://cdn.example.com/1.mp3")
	wantErr := errors.New("store unavailable")
	admit := func(ep *models.Episode) (bool, error) { return false, wantErr }

	show := &models.Show{FeedURL: "https://example.com/feed.xml"}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, admit, Options{})
	assert.ErrorIs(t, err, wantErr)
}

func TestParse_MalformedNestingIsStructural(t *testing.T) {
	doc := `<rss><channel><title>Broken Feed</title><description>ok</desc></channel></rss>`
	show := &models.Show{FeedURL: "https://example.com/feed.xml"}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, nil, Options{FullRead: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFeed)
	var structural *StructuralError
	assert.ErrorAs(t, err, &structural)

	// Metadata mutated before the failure point stays visible.
	assert.Equal(t, "Broken Feed", show.Title)
}

func TestParse_MissingRoot(t *testing.T) {
	show := &models.Show{}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(`<notrss></notrss>`), show, nil, Options{})
	assert.ErrorIs(t, err, ErrMalformedFeed)
}

func TestParse_MissingChannel(t *testing.T) {
	show := &models.Show{}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(`<rss version="2.0"></rss>`), show, nil, Options{})
	assert.ErrorIs(t, err, ErrMalformedFeed)
}

func TestParse_EmptyInput(t *testing.T) {
	show := &models.Show{}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(""), show, nil, Options{})
	assert.ErrorIs(t, err, ErrMalformedFeed)
}

func TestParse_FutureDateClamped(t *testing.T) {
	future := time.Now().Add(10 * 365 * 24 * time.Hour).Format(time.RFC1123Z)
	doc := `<rss><channel><title>t</title><item>` +
		`<pubDate>` + future + `</pubDate>` +
		`<enclosure url="https://cdn.example.com/f.mp3" length="1" type="audio/mpeg"/>` +
		`</item></channel></rss>`

	show := &models.Show{}
	eps, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, nil, Options{FullRead: true})
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.False(t, eps[0].PublishedAt.After(time.Now()))
}

func TestParse_InvalidShowImageDropped(t *testing.T) {
	doc := `<rss><channel><title>t</title><image><url>not a url</url></image></channel></rss>`
	show := &models.Show{}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, show.ImageURL)
}

func TestParse_ItunesImageAttribute(t *testing.T) {
	doc := `<rss xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">` +
		`<channel><title>t</title><itunes:image href="https://example.com/art.png"/></channel></rss>`
	show := &models.Show{}
	_, err := NewParser(discardLogger()).Parse(strings.NewReader(doc), show, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/art.png", show.ImageURL)
}
