package episodes

import (
	"context"

	"github.com/soundhaven/feedsync/internal/models"
)

// Service exposes episode read and playback operations to the API layer.
type Service struct {
	repository EpisodeRepository
}

func NewService(repository EpisodeRepository) *Service {
	return &Service{repository: repository}
}

func (s *Service) GetEpisodeByID(ctx context.Context, id uint) (*models.Episode, error) {
	return s.repository.GetEpisodeByID(ctx, id)
}

func (s *Service) GetEpisodesByShowID(ctx context.Context, showID uint, page, limit int) ([]models.Episode, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repository.GetEpisodesByShowID(ctx, showID, page, limit)
}

func (s *Service) GetRecentEpisodes(ctx context.Context, limit int) ([]models.Episode, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repository.GetRecentEpisodes(ctx, limit)
}

// UpdatePlaybackState records the listener's position for an episode.
// Playback state is never touched by feed merges.
func (s *Service) UpdatePlaybackState(ctx context.Context, id uint, positionMs int, played bool) error {
	return s.repository.UpdatePlayback(ctx, id, positionMs, played)
}
