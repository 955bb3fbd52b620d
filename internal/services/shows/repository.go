package shows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/soundhaven/feedsync/internal/models"
)

type Repository struct {
	db *gorm.DB
}

// Ensure Repository implements ShowRepository interface
var _ ShowRepository = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateShow creates a new show subscription.
func (r *Repository) CreateShow(ctx context.Context, show *models.Show) error {
	if err := r.db.WithContext(ctx).Create(show).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return fmt.Errorf("show with feed url %s: %w", show.FeedURL, ErrDuplicateFeed)
		}
		return fmt.Errorf("creating show: %w", err)
	}
	return nil
}

// UpdateShow updates an existing show.
func (r *Repository) UpdateShow(ctx context.Context, show *models.Show) error {
	result := r.db.WithContext(ctx).Save(show)
	if result.Error != nil {
		return fmt.Errorf("updating show: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrShowNotFound
	}
	return nil
}

// GetShowByID retrieves a show by its database ID.
func (r *Repository) GetShowByID(ctx context.Context, id uint) (*models.Show, error) {
	var show models.Show
	if err := r.db.WithContext(ctx).First(&show, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("getting show: %w", err)
	}
	return &show, nil
}

// GetShowByFeedURL retrieves a show by its feed URL.
func (r *Repository) GetShowByFeedURL(ctx context.Context, feedURL string) (*models.Show, error) {
	var show models.Show
	if err := r.db.WithContext(ctx).
		Where("feed_url = ?", feedURL).
		First(&show).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("getting show by feed url: %w", err)
	}
	return &show, nil
}

// ListShows returns a paginated list of subscribed shows.
func (r *Repository) ListShows(ctx context.Context, page, limit int) ([]models.Show, int64, error) {
	var showList []models.Show
	var total int64

	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).Model(&models.Show{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting shows: %w", err)
	}

	if err := query.
		Order("title ASC").
		Limit(limit).
		Offset(offset).
		Find(&showList).Error; err != nil {
		return nil, 0, fmt.Errorf("listing shows: %w", err)
	}

	return showList, total, nil
}

// IncrementFailCount bumps the consecutive refresh failure counter. The
// counter is reset to zero by a successful merge commit, so its value is
// always the current failure streak.
func (r *Repository) IncrementFailCount(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Show{}).
		Where("id = ?", id).
		UpdateColumn("fail_count", gorm.Expr("fail_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("incrementing fail count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrShowNotFound
	}
	return nil
}

// DeleteShow removes a show and its episodes.
func (r *Repository) DeleteShow(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("show_id = ?", id).Delete(&models.Episode{}).Error; err != nil {
			return fmt.Errorf("deleting episodes: %w", err)
		}
		result := tx.Delete(&models.Show{}, id)
		if result.Error != nil {
			return fmt.Errorf("deleting show: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrShowNotFound
		}
		return nil
	})
}

// isUniqueViolation catches the sqlite constraint error text, which GORM's
// sqlite driver does not always translate to ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
