package episodes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/soundhaven/feedsync/internal/models"
)

type Repository struct {
	db *gorm.DB
}

// Ensure Repository implements EpisodeRepository interface
var _ EpisodeRepository = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ExistsByMediaURL(ctx context.Context, showID uint, mediaURL string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("show_id = ? AND media_url = ?", showID, mediaURL).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking episode existence: %w", err)
	}
	return count > 0, nil
}

// MapEpisodesByURLSince loads the show's episodes published at or after the
// given timestamp, keyed by media URL. Bounding the scan to episodes that
// could overlap an incoming batch is what keeps refreshes cheap on shows
// with long histories.
func (r *Repository) MapEpisodesByURLSince(ctx context.Context, showID uint, since time.Time) (map[string]models.Episode, error) {
	var rows []models.Episode
	err := r.db.WithContext(ctx).
		Where("show_id = ? AND published_at >= ?", showID, since).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading episodes since %s: %w", since.Format(time.RFC3339), err)
	}

	byURL := make(map[string]models.Episode, len(rows))
	for _, ep := range rows {
		byURL[ep.MediaURL] = ep
	}
	return byURL, nil
}

func (r *Repository) GetEpisodeByID(ctx context.Context, id uint) (*models.Episode, error) {
	var episode models.Episode
	if err := r.db.WithContext(ctx).First(&episode, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("episode", id)
		}
		return nil, fmt.Errorf("getting episode: %w", err)
	}
	return &episode, nil
}

func (r *Repository) GetEpisodesByShowID(ctx context.Context, showID uint, page, limit int) ([]models.Episode, int64, error) {
	var episodes []models.Episode
	var total int64

	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).Model(&models.Episode{}).Where("show_id = ?", showID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting episodes: %w", err)
	}

	if err := query.
		Order("published_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&episodes).Error; err != nil {
		return nil, 0, fmt.Errorf("getting episodes: %w", err)
	}

	return episodes, total, nil
}

func (r *Repository) GetRecentEpisodes(ctx context.Context, limit int) ([]models.Episode, error) {
	var episodes []models.Episode
	if err := r.db.WithContext(ctx).
		Order("published_at DESC").
		Limit(limit).
		Find(&episodes).Error; err != nil {
		return nil, fmt.Errorf("getting recent episodes: %w", err)
	}
	return episodes, nil
}

// CommitBatch applies a merge batch as one all-or-nothing transaction:
// episode inserts, episode updates, and the show's bookkeeping (failure
// counter reset, advanced watermark). The coordinator performs no partial
// rollback itself; on failure the transaction is rolled back by the store
// and the caller retries the whole batch.
func (r *Repository) CommitBatch(ctx context.Context, batch *Batch) error {
	if batch == nil || (batch.Empty() && batch.Show == nil) {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ep := range batch.Inserts {
			if err := tx.Create(ep).Error; err != nil {
				return fmt.Errorf("inserting episode %q: %w", ep.MediaURL, err)
			}
		}
		for _, ep := range batch.Updates {
			if err := tx.Save(ep).Error; err != nil {
				return fmt.Errorf("updating episode %q: %w", ep.MediaURL, err)
			}
		}
		if batch.Show != nil && batch.Show.ID != 0 {
			updates := map[string]interface{}{
				"fail_count":        0,
				"last_item_updated": batch.Show.LastItemUpdated,
			}
			if err := tx.Model(&models.Show{}).
				Where("id = ?", batch.Show.ID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("updating show bookkeeping: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		showID := uint(0)
		if batch.Show != nil {
			showID = batch.Show.ID
		}
		return &CommitError{ShowID: showID, Err: err}
	}
	return nil
}

func (r *Repository) UpdatePlayback(ctx context.Context, id uint, positionMs int, played bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"position_ms": positionMs,
			"played":      played,
		})
	if result.Error != nil {
		return fmt.Errorf("updating playback state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("episode", id)
	}
	return nil
}

func (r *Repository) SetDownloadStatus(ctx context.Context, id uint, status models.DownloadStatus, path string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Episode{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"download_status": status,
			"download_path":   path,
		})
	if result.Error != nil {
		return fmt.Errorf("updating download status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("episode", id)
	}
	return nil
}
