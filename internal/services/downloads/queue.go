// Package downloads runs the background media download queue. Episodes are
// handed to the queue after a merge commit and fetched by a fixed pool of
// workers.
package downloads

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/soundhaven/feedsync/internal/models"
	"github.com/soundhaven/feedsync/pkg/download"
)

// Fetcher downloads a single media URL for an episode.
type Fetcher interface {
	Fetch(ctx context.Context, url string, episodeID uint) (*download.Result, error)
}

// StatusStore records download progress on episode rows.
type StatusStore interface {
	SetDownloadStatus(ctx context.Context, id uint, status models.DownloadStatus, path string) error
}

// Queue is a bounded download queue backed by a worker pool. Enqueue never
// blocks; when the queue is full the episode is dropped and will be picked
// up again manually or on a later refresh.
type Queue struct {
	fetcher  Fetcher
	store    StatusStore
	log      logrus.FieldLogger
	jobs     chan models.Episode
	workers  int
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewQueue creates a download queue with the given worker count and buffer
// size.
func NewQueue(fetcher Fetcher, store StatusStore, workers, buffer int, log logrus.FieldLogger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 32
	}
	return &Queue{
		fetcher:  fetcher,
		store:    store,
		log:      log,
		jobs:     make(chan models.Episode, buffer),
		workers:  workers,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
}

// Stop drains no further work and waits for in-flight downloads to finish.
func (q *Queue) Stop() {
	close(q.stopChan)
	q.wg.Wait()
}

// Enqueue submits an episode for download without blocking. The episode is
// marked queued before the workers see it so the API reports a consistent
// status.
func (q *Queue) Enqueue(ep models.Episode) {
	if err := q.store.SetDownloadStatus(context.Background(), ep.ID, models.DownloadQueued, ""); err != nil {
		q.log.WithError(err).WithField("episode", ep.ID).Warn("marking episode queued")
	}

	select {
	case q.jobs <- ep:
	default:
		q.log.WithField("episode", ep.ID).Warn("download queue full, dropping episode")
		if err := q.store.SetDownloadStatus(context.Background(), ep.ID, models.DownloadNone, ""); err != nil {
			q.log.WithError(err).WithField("episode", ep.ID).Warn("resetting dropped episode status")
		}
	}
}

func (q *Queue) run(ctx context.Context, id int) {
	defer q.wg.Done()

	log := q.log.WithField("worker", id)
	log.Debug("download worker starting")
	defer log.Debug("download worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case ep := <-q.jobs:
			q.process(ctx, ep)
		}
	}
}

func (q *Queue) process(ctx context.Context, ep models.Episode) {
	log := q.log.WithFields(logrus.Fields{"episode": ep.ID, "url": ep.MediaURL})

	result, err := q.fetcher.Fetch(ctx, ep.MediaURL, ep.ID)
	if err != nil {
		log.WithError(err).Warn("episode download failed")
		if err := q.store.SetDownloadStatus(ctx, ep.ID, models.DownloadFailed, ""); err != nil {
			log.WithError(err).Warn("marking episode failed")
		}
		return
	}

	if err := q.store.SetDownloadStatus(ctx, ep.ID, models.DownloadComplete, result.FilePath); err != nil {
		log.WithError(err).Warn("marking episode complete")
		return
	}
	log.WithField("path", result.FilePath).Info("episode downloaded")
}
