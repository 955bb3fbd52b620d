package episodes

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/soundhaven/feedsync/internal/models"
)

// MergeOptions control one merge pass.
type MergeOptions struct {
	// UpdateExisting overwrites metadata on episodes already in the store.
	// Playback state is always preserved either way.
	UpdateExisting bool
	// AutoDownload enqueues newly inserted episodes on the download queue.
	AutoDownload bool
}

// Merger reconciles a parsed episode batch against the persisted episode set
// for one show, classifying each candidate as insert, skip, or update, and
// committing the result through the repository as a single batch.
//
// The engine performs no locking: correctness depends on at most one
// concurrent refresh per show, which the refresh coordinator enforces.
type Merger struct {
	repo      EpisodeRepository
	downloads DownloadQueue
	log       logrus.FieldLogger
}

func NewMerger(repo EpisodeRepository, downloads DownloadQueue, log logrus.FieldLogger) *Merger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Merger{repo: repo, downloads: downloads, log: log}
}

// Admit is the single-item admit check consumed by the parser's incremental
// short-circuit: it reports whether the episode is not yet in the store.
func (m *Merger) Admit(ctx context.Context, showID uint, mediaURL string) (bool, error) {
	exists, err := m.repo.ExistsByMediaURL(ctx, showID, mediaURL)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Merge reconciles the candidate batch and commits. Returns the number of
// newly inserted episodes.
//
// The existing-set lookup is bounded below by the oldest publish date in the
// batch: only episodes that could possibly collide with a candidate are
// loaded. Episodes sharing a media URL are by definition the same episode;
// no second row is ever created for a URL. The watermark is computed with
// max, so batch iteration order does not affect it.
func (m *Merger) Merge(ctx context.Context, show *models.Show, candidates []*models.Episode, opts MergeOptions) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	oldest := oldestPublishDate(candidates)
	existing, err := m.repo.MapEpisodesByURLSince(ctx, show.ID, oldest)
	if err != nil {
		return 0, err
	}

	batch := NewBatch(show)
	watermark := show.LastItemUpdated
	added := 0
	var inserted []*models.Episode
	queued := make(map[string]struct{}, len(candidates))

	for _, candidate := range candidates {
		candidate.ShowID = show.ID
		candidate.PublishedAt = clampToNow(candidate.PublishedAt)

		// A feed can repeat an enclosure URL within one document. The first
		// occurrence decides the row; repeats are the same episode.
		if _, dup := queued[candidate.MediaURL]; dup {
			continue
		}
		queued[candidate.MediaURL] = struct{}{}

		if current, ok := existing[candidate.MediaURL]; ok {
			if !opts.UpdateExisting {
				continue
			}
			// Metadata refresh only: identity and playback state of the
			// persisted row survive.
			candidate.ID = current.ID
			candidate.CreatedAt = current.CreatedAt
			candidate.Played = current.Played
			candidate.PositionMs = current.PositionMs
			candidate.DownloadStatus = current.DownloadStatus
			candidate.DownloadPath = current.DownloadPath
			batch.AddUpdate(candidate)
			continue
		}

		batch.AddInsert(candidate)
		inserted = append(inserted, candidate)
		added++
		if candidate.PublishedAt.After(watermark) {
			watermark = candidate.PublishedAt
		}
	}

	show.LastItemUpdated = watermark
	show.FailCount = 0

	if err := m.repo.CommitBatch(ctx, batch); err != nil {
		return 0, err
	}

	m.log.WithFields(logrus.Fields{
		"show":    show.ID,
		"added":   added,
		"updated": len(batch.Updates),
	}).Info("merged episode batch")

	if opts.AutoDownload && m.downloads != nil {
		for _, ep := range inserted {
			m.downloads.Enqueue(*ep)
		}
	}

	return added, nil
}

func oldestPublishDate(candidates []*models.Episode) time.Time {
	oldest := candidates[0].PublishedAt
	for _, c := range candidates[1:] {
		if c.PublishedAt.Before(oldest) {
			oldest = c.PublishedAt
		}
	}
	return oldest
}

func clampToNow(t time.Time) time.Time {
	if now := time.Now(); t.After(now) {
		return now
	}
	return t
}
