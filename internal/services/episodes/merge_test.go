package episodes

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/soundhaven/feedsync/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Show{}, &models.Episode{})
	require.NoError(t, err)

	return db
}

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func createTestShow(t *testing.T, db *gorm.DB) *models.Show {
	show := &models.Show{
		FeedURL: "https://example.com/feed.xml",
		Title:   "Test Show",
	}
	require.NoError(t, db.Create(show).Error)
	return show
}

func candidate(showID uint, n int, published time.Time) *models.Episode {
	return &models.Episode{
		ShowID:      showID,
		Title:       fmt.Sprintf("Episode %d", n),
		MediaURL:    fmt.Sprintf("https://cdn.example.com/ep%d.mp3", n),
		MediaKind:   models.MediaKindAudio,
		DurationMs:  models.DurationUnknown,
		PublishedAt: published,
	}
}

// recordingQueue collects enqueued episodes for assertions.
type recordingQueue struct {
	mu       sync.Mutex
	episodes []models.Episode
}

func (q *recordingQueue) Enqueue(ep models.Episode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.episodes = append(q.episodes, ep)
}

func TestMerge_InsertsAllNewEpisodes(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var batch []*models.Episode
	for i := 1; i <= 5; i++ {
		batch = append(batch, candidate(show.ID, i, base.Add(time.Duration(i)*time.Hour)))
	}

	added, err := merger.Merge(context.Background(), show, batch, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, added)

	var count int64
	require.NoError(t, db.Model(&models.Episode{}).Where("show_id = ?", show.ID).Count(&count).Error)
	assert.EqualValues(t, 5, count)
}

func TestMerge_RerunAddsNothing(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []*models.Episode{
		candidate(show.ID, 1, base),
		candidate(show.ID, 2, base.Add(time.Hour)),
	}

	_, err := merger.Merge(context.Background(), show, batch, MergeOptions{})
	require.NoError(t, err)

	// Identical feed, re-parsed: zero new rows, zero duplicates.
	rerun := []*models.Episode{
		candidate(show.ID, 1, base),
		candidate(show.ID, 2, base.Add(time.Hour)),
	}
	added, err := merger.Merge(context.Background(), show, rerun, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	var count int64
	require.NoError(t, db.Model(&models.Episode{}).Where("show_id = ?", show.ID).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestMerge_RepeatedURLWithinBatchInsertsOnce(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := candidate(show.ID, 1, base)
	repeat := candidate(show.ID, 1, base.Add(time.Hour))
	repeat.Title = "Episode 1 (repeat)"

	added, err := merger.Merge(context.Background(), show, []*models.Episode{first, repeat}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	var rows []models.Episode
	require.NoError(t, db.Where("show_id = ?", show.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "Episode 1", rows[0].Title)
}

func TestMerge_RepeatedURLAgainstExistingRowUpdatesOnce(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)}, MergeOptions{})
	require.NoError(t, err)

	retitled := candidate(show.ID, 1, base)
	retitled.Title = "Episode 1 (revised)"
	repeat := candidate(show.ID, 1, base)
	repeat.Title = "Episode 1 (late duplicate)"

	added, err := merger.Merge(context.Background(), show, []*models.Episode{retitled, repeat}, MergeOptions{UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	var rows []models.Episode
	require.NoError(t, db.Where("show_id = ?", show.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "Episode 1 (revised)", rows[0].Title)
}

func TestMerge_UpdatePreservesPlaybackState(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)}, MergeOptions{})
	require.NoError(t, err)

	// Listener makes progress.
	var stored models.Episode
	require.NoError(t, db.Where("show_id = ?", show.ID).First(&stored).Error)
	require.NoError(t, db.Model(&stored).Updates(map[string]interface{}{
		"position_ms": 120000,
		"played":      true,
	}).Error)

	// The feed re-serves the episode with a new title.
	updated := candidate(show.ID, 1, base)
	updated.Title = "Episode 1 (remastered)"
	added, err := merger.Merge(context.Background(), show, []*models.Episode{updated}, MergeOptions{UpdateExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	var after models.Episode
	require.NoError(t, db.First(&after, stored.ID).Error)
	assert.Equal(t, "Episode 1 (remastered)", after.Title)
	assert.Equal(t, 120000, after.PositionMs)
	assert.True(t, after.Played)

	var count int64
	require.NoError(t, db.Model(&models.Episode{}).Where("show_id = ?", show.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count, "never two rows for one media URL")
}

func TestMerge_SkipWithoutUpdateExisting(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)}, MergeOptions{})
	require.NoError(t, err)

	changed := candidate(show.ID, 1, base)
	changed.Title = "Should Not Stick"
	_, err = merger.Merge(context.Background(), show, []*models.Episode{changed}, MergeOptions{UpdateExisting: false})
	require.NoError(t, err)

	var after models.Episode
	require.NoError(t, db.Where("show_id = ?", show.ID).First(&after).Error)
	assert.Equal(t, "Episode 1", after.Title)
}

func TestMerge_WatermarkIsMaxRegardlessOfOrder(t *testing.T) {
	db := setupTestDB(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	newest := base.Add(72 * time.Hour)

	// Same episodes, opposite iteration orders.
	orders := [][]int{{1, 2, 3}, {3, 2, 1}}
	for i, order := range orders {
		show := &models.Show{FeedURL: fmt.Sprintf("https://example.com/feed%d.xml", i)}
		require.NoError(t, db.Create(show).Error)
		merger := NewMerger(NewRepository(db), nil, testLogger())

		var batch []*models.Episode
		for _, n := range order {
			batch = append(batch, candidate(show.ID, n, base.Add(time.Duration(n)*24*time.Hour)))
		}

		_, err := merger.Merge(context.Background(), show, batch, MergeOptions{})
		require.NoError(t, err)

		var stored models.Show
		require.NoError(t, db.First(&stored, show.ID).Error)
		assert.True(t, stored.LastItemUpdated.Equal(newest),
			"watermark must equal the max publish date, independent of batch order")
	}
}

func TestMerge_WatermarkNeverRegresses(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, newer)}, MergeOptions{})
	require.NoError(t, err)

	// A backfill of older episodes must not move the watermark backwards.
	_, err = merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 2, older)}, MergeOptions{})
	require.NoError(t, err)

	var stored models.Show
	require.NoError(t, db.First(&stored, show.ID).Error)
	assert.True(t, stored.LastItemUpdated.Equal(newer))
}

func TestMerge_ResetsFailCount(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	require.NoError(t, db.Model(show).Update("fail_count", 7).Error)
	show.FailCount = 7

	merger := NewMerger(NewRepository(db), nil, testLogger())
	_, err := merger.Merge(context.Background(), show,
		[]*models.Episode{candidate(show.ID, 1, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))}, MergeOptions{})
	require.NoError(t, err)

	var stored models.Show
	require.NoError(t, db.First(&stored, show.ID).Error)
	assert.Equal(t, 0, stored.FailCount)
}

func TestMerge_FuturePublishDateClamped(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	future := time.Now().Add(10 * 365 * 24 * time.Hour)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, future)}, MergeOptions{})
	require.NoError(t, err)

	var stored models.Episode
	require.NoError(t, db.Where("show_id = ?", show.ID).First(&stored).Error)
	assert.False(t, stored.PublishedAt.After(time.Now()))
}

func TestMerge_AutoDownloadEnqueuesOnlyInserts(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	queue := &recordingQueue{}
	merger := NewMerger(NewRepository(db), queue, testLogger())

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)},
		MergeOptions{AutoDownload: true})
	require.NoError(t, err)
	require.Len(t, queue.episodes, 1)
	assert.Equal(t, "https://cdn.example.com/ep1.mp3", queue.episodes[0].MediaURL)

	// Re-merging the same episode signals nothing.
	_, err = merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)},
		MergeOptions{AutoDownload: true, UpdateExisting: true})
	require.NoError(t, err)
	assert.Len(t, queue.episodes, 1)
}

func TestMerge_EmptyBatchIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	added, err := merger.Merge(context.Background(), show, nil, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
}

func TestAdmit(t *testing.T) {
	db := setupTestDB(t)
	show := createTestShow(t, db)
	merger := NewMerger(NewRepository(db), nil, testLogger())

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := merger.Merge(context.Background(), show, []*models.Episode{candidate(show.ID, 1, base)}, MergeOptions{})
	require.NoError(t, err)

	known, err := merger.Admit(context.Background(), show.ID, "https://cdn.example.com/ep1.mp3")
	require.NoError(t, err)
	assert.False(t, known, "already persisted URL is not admitted")

	fresh, err := merger.Admit(context.Background(), show.ID, "https://cdn.example.com/new.mp3")
	require.NoError(t, err)
	assert.True(t, fresh)
}
