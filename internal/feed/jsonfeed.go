package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soundhaven/feedsync/internal/models"
)

// ShowDocument is the JSON transport's representation of one show plus its
// episodes, as returned by the secondary source API. The transport always
// delivers a small, complete set, so there is no streaming short-circuit on
// this path.
type ShowDocument struct {
	Title       string            `json:"title"`
	Link        string            `json:"link"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	Episodes    []EpisodeDocument `json:"episodes"`
}

// EpisodeDocument is one episode record on the JSON transport.
type EpisodeDocument struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	MediaURL    string `json:"url"`
	FileSize    int64  `json:"filesize"`
	MimeType    string `json:"mimetype"`
	Duration    string `json:"duration"`
	Released    string `json:"released"`
	PageLink    string `json:"link"`
	ArtworkURL  string `json:"image"`
}

// ParseJSON deserializes a JSON array of show documents into the same
// intermediate model the XML path produces, mutating show's metadata in
// place and returning the episode batch for the merge engine.
//
// Only the first document is read; additional array entries are ignored, as
// the transport never legitimately returns more than one show per call. A
// malformed or partially-shaped episode degrades to "skipped", never to a
// whole-batch failure. Malformed JSON overall is a transport error.
func ParseJSON(data []byte, show *models.Show, log logrus.FieldLogger) ([]*models.Episode, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var docs []ShowDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding show documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	doc := docs[0]

	sess := newSession(log.WithField("feed_url", show.FeedURL))

	if show.Title == "" && doc.Title != "" {
		show.Title = doc.Title
	}
	if show.Link == "" && doc.Link != "" {
		show.Link = doc.Link
	}
	if doc.Description != "" {
		show.Description = sess.cleanDescription(doc.Description)
	}
	if isValidURL(doc.ImageURL) {
		show.ImageURL = doc.ImageURL
	}

	episodes := make([]*models.Episode, 0, len(doc.Episodes))
	for _, item := range doc.Episodes {
		ep, ok := episodeFromDocument(item, show, sess)
		if !ok {
			continue // skipped, not fatal
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

func episodeFromDocument(item EpisodeDocument, show *models.Show, sess *session) (*models.Episode, bool) {
	if !isValidURL(item.MediaURL) {
		return nil, false
	}

	ep := &models.Episode{
		ShowID:      show.ID,
		Title:       item.Title,
		Author:      item.Author,
		PageLink:    item.PageLink,
		MediaURL:    item.MediaURL,
		MediaKind:   KindFromMIME(item.MimeType),
		DurationMs:  ParseDuration(item.Duration),
		PublishedAt: time.Now(),
	}
	if item.Description != "" {
		ep.Description = sess.cleanDescription(item.Description)
	}
	if item.FileSize > 0 {
		ep.FileSize = item.FileSize
	}
	if isValidURL(item.ArtworkURL) {
		ep.ArtworkURL = item.ArtworkURL
	}
	if t, ok := sess.parseDate(item.Released); ok {
		ep.PublishedAt = ClampToNow(t)
	} else if item.Released != "" {
		sess.reportOnce("released", item.Released)
	}
	return ep, true
}
