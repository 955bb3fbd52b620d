// Package refresh fetches subscribed feeds and folds new episodes into the
// store. One refresh runs per show at a time; overlapping requests for the
// same show are rejected rather than queued.
package refresh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/soundhaven/feedsync/internal/feed"
	"github.com/soundhaven/feedsync/internal/models"
	"github.com/soundhaven/feedsync/internal/services/episodes"
	"github.com/soundhaven/feedsync/internal/services/shows"
)

// ErrRefreshInProgress is returned when a refresh is requested for a show
// that already has one running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

const maxFeedBytes = 10 * 1024 * 1024

// Options configures the refresh service.
type Options struct {
	UserAgent      string        // User agent for feed requests
	Timeout        time.Duration // Per-fetch HTTP timeout
	RequestsPerSec float64       // Global outbound request rate
	Workers        int           // Concurrency for RefreshAll
	Interval       time.Duration // Period between background refresh sweeps
	UpdateExisting bool          // Overwrite metadata of known episodes
	AutoDownload   bool          // Queue new episodes for download
}

// DefaultOptions returns the defaults used when config leaves refresh
// settings unset.
func DefaultOptions() Options {
	return Options{
		UserAgent:      "feedsync/1.0",
		Timeout:        30 * time.Second,
		RequestsPerSec: 2,
		Workers:        4,
		Interval:       time.Hour,
	}
}

// Service coordinates feed fetching, parsing and merging.
type Service struct {
	client  *http.Client
	limiter *rate.Limiter
	parser  *feed.Parser
	merger  *episodes.Merger
	shows   shows.ShowRepository
	log     logrus.FieldLogger
	options Options

	mu       sync.Mutex
	inFlight map[uint]struct{}

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a refresh service.
func NewService(showRepo shows.ShowRepository, merger *episodes.Merger, options Options, log logrus.FieldLogger) *Service {
	if options.Workers < 1 {
		options.Workers = 1
	}
	if options.RequestsPerSec <= 0 {
		options.RequestsPerSec = 2
	}
	if options.Timeout <= 0 {
		options.Timeout = 30 * time.Second
	}
	return &Service{
		client:   &http.Client{Timeout: options.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(options.RequestsPerSec), 1),
		parser:   feed.NewParser(log),
		merger:   merger,
		shows:    showRepo,
		log:      log,
		options:  options,
		inFlight: make(map[uint]struct{}),
		stopChan: make(chan struct{}),
	}
}

// RefreshShow fetches the show's feed and merges its episodes. With full
// set, the whole feed is read and known episodes are re-admitted so their
// metadata can be refreshed; otherwise parsing stops at the first episode
// already in the store.
func (s *Service) RefreshShow(ctx context.Context, show *models.Show, full bool) (int, error) {
	if !s.acquire(show.ID) {
		return 0, fmt.Errorf("show %d: %w", show.ID, ErrRefreshInProgress)
	}
	defer s.release(show.ID)

	candidates, err := s.fetchAndParse(ctx, show, full)
	if err != nil {
		if ferr := s.shows.IncrementFailCount(ctx, show.ID); ferr != nil {
			s.log.WithError(ferr).WithField("show", show.ID).Warn("recording refresh failure")
		}
		return 0, err
	}

	added, err := s.merger.Merge(ctx, show, candidates, episodes.MergeOptions{
		UpdateExisting: full || s.options.UpdateExisting,
		AutoDownload:   s.options.AutoDownload,
	})
	if err != nil {
		return 0, err
	}

	if err := s.shows.UpdateShow(ctx, show); err != nil {
		return added, fmt.Errorf("persisting show metadata: %w", err)
	}
	return added, nil
}

// RefreshByID loads the show and refreshes it.
func (s *Service) RefreshByID(ctx context.Context, id uint, full bool) (int, error) {
	show, err := s.shows.GetShowByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.RefreshShow(ctx, show, full)
}

// RefreshAll refreshes every subscribed show using the configured worker
// count. Individual failures are logged and counted, not fatal.
func (s *Service) RefreshAll(ctx context.Context, full bool) error {
	var all []models.Show
	for page := 1; ; page++ {
		batch, _, err := s.shows.ListShows(ctx, page, 100)
		if err != nil {
			return fmt.Errorf("listing shows: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		if len(batch) < 100 {
			break
		}
	}

	jobs := make(chan models.Show)
	var wg sync.WaitGroup
	for i := 0; i < s.options.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for show := range jobs {
				current := show
				if _, err := s.RefreshShow(ctx, &current, full); err != nil {
					if errors.Is(err, ErrRefreshInProgress) {
						continue
					}
					s.log.WithError(err).WithFields(logrus.Fields{
						"show": current.ID,
						"feed": current.FeedURL,
					}).Warn("show refresh failed")
				}
			}
		}()
	}

	for _, show := range all {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- show:
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

// Start runs periodic background refreshes until Stop is called or the
// context is cancelled.
func (s *Service) Start(ctx context.Context) {
	if s.options.Interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.options.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				if err := s.RefreshAll(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
					s.log.WithError(err).Warn("background refresh sweep failed")
				}
			}
		}
	}()
}

// Stop halts the background refresh loop.
func (s *Service) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Service) acquire(showID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[showID]; busy {
		return false
	}
	s.inFlight[showID] = struct{}{}
	return true
}

func (s *Service) release(showID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, showID)
}

func (s *Service) fetchAndParse(ctx context.Context, show *models.Show, full bool) ([]*models.Episode, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, show.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating feed request: %w", err)
	}
	req.Header.Set("User-Agent", s.options.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, application/json, */*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed server returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading feed body: %w", err)
	}

	if isJSONPayload(resp.Header.Get("Content-Type"), body) {
		return feed.ParseJSON(body, show, s.log)
	}

	admit := func(ep *models.Episode) (bool, error) {
		if full {
			return true, nil
		}
		return s.merger.Admit(ctx, show.ID, ep.MediaURL)
	}
	return s.parser.Parse(bytes.NewReader(body), show, admit, feed.Options{FullRead: full})
}

// isJSONPayload decides whether the fetched document is the JSON feed
// format rather than RSS. Content-Type wins when present; otherwise the
// first non-space byte decides.
func isJSONPayload(contentType string, body []byte) bool {
	if strings.Contains(contentType, "application/json") {
		return true
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}
