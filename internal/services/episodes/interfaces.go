package episodes

import (
	"context"
	"time"

	"github.com/soundhaven/feedsync/internal/models"
)

// EpisodeRepository defines the persistence contract the merge engine
// consumes. True atomicity of CommitBatch belongs to the backing store.
type EpisodeRepository interface {
	// Read operations
	ExistsByMediaURL(ctx context.Context, showID uint, mediaURL string) (bool, error)
	MapEpisodesByURLSince(ctx context.Context, showID uint, since time.Time) (map[string]models.Episode, error)
	GetEpisodeByID(ctx context.Context, id uint) (*models.Episode, error)
	GetEpisodesByShowID(ctx context.Context, showID uint, page, limit int) ([]models.Episode, int64, error)
	GetRecentEpisodes(ctx context.Context, limit int) ([]models.Episode, error)

	// Write operations
	CommitBatch(ctx context.Context, batch *Batch) error
	UpdatePlayback(ctx context.Context, id uint, positionMs int, played bool) error
	SetDownloadStatus(ctx context.Context, id uint, status models.DownloadStatus, path string) error
}

// DownloadQueue is the external downloader collaborator. Enqueue is
// fire-and-forget; the merge engine only signals availability.
type DownloadQueue interface {
	Enqueue(ep models.Episode)
}
