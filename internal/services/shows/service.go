package shows

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/soundhaven/feedsync/internal/models"
)

type Service struct {
	repository ShowRepository
}

// Ensure Service implements ShowService interface
var _ ShowService = (*Service)(nil)

func NewService(repository ShowRepository) *Service {
	return &Service{repository: repository}
}

// Subscribe registers a feed URL for tracking. Metadata stays empty until
// the first refresh fills it in from the feed itself.
func (s *Service) Subscribe(ctx context.Context, feedURL string) (*models.Show, error) {
	if !isValidFeedURL(feedURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFeedURL, feedURL)
	}

	existing, err := s.repository.GetShowByFeedURL(ctx, feedURL)
	if err == nil {
		return existing, fmt.Errorf("show %d: %w", existing.ID, ErrDuplicateFeed)
	}
	if !errors.Is(err, ErrShowNotFound) {
		return nil, err
	}

	show := &models.Show{FeedURL: feedURL}
	if err := s.repository.CreateShow(ctx, show); err != nil {
		return nil, err
	}
	return show, nil
}

func (s *Service) GetShowByID(ctx context.Context, id uint) (*models.Show, error) {
	return s.repository.GetShowByID(ctx, id)
}

func (s *Service) GetShowByFeedURL(ctx context.Context, feedURL string) (*models.Show, error) {
	return s.repository.GetShowByFeedURL(ctx, feedURL)
}

func (s *Service) ListShows(ctx context.Context, page, limit int) ([]models.Show, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repository.ListShows(ctx, page, limit)
}

func (s *Service) Unsubscribe(ctx context.Context, id uint) error {
	return s.repository.DeleteShow(ctx, id)
}

func isValidFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
