package shows

import (
	"context"

	"github.com/soundhaven/feedsync/internal/models"
)

// ShowRepository defines persistence operations for subscribed shows.
type ShowRepository interface {
	CreateShow(ctx context.Context, show *models.Show) error
	UpdateShow(ctx context.Context, show *models.Show) error
	GetShowByID(ctx context.Context, id uint) (*models.Show, error)
	GetShowByFeedURL(ctx context.Context, feedURL string) (*models.Show, error)
	ListShows(ctx context.Context, page, limit int) ([]models.Show, int64, error)
	IncrementFailCount(ctx context.Context, id uint) error
	DeleteShow(ctx context.Context, id uint) error
}

// ShowService provides business logic for show management.
type ShowService interface {
	Subscribe(ctx context.Context, feedURL string) (*models.Show, error)
	GetShowByID(ctx context.Context, id uint) (*models.Show, error)
	GetShowByFeedURL(ctx context.Context, feedURL string) (*models.Show, error)
	ListShows(ctx context.Context, page, limit int) ([]models.Show, int64, error)
	Unsubscribe(ctx context.Context, id uint) error
}
