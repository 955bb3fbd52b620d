package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaKind classifies an episode's enclosure content.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// DownloadStatus tracks where an episode's media file is in the download pipeline.
type DownloadStatus string

const (
	DownloadNone     DownloadStatus = ""
	DownloadQueued   DownloadStatus = "queued"
	DownloadComplete DownloadStatus = "complete"
	DownloadFailed   DownloadStatus = "failed"
)

// DurationUnknown is stored when a feed carries no parsable duration.
const DurationUnknown int64 = -1

// Show represents a subscribed feed.
type Show struct {
	gorm.Model
	FeedURL     string `json:"feed_url" gorm:"uniqueIndex;not null"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Language    string `json:"language"`
	Copyright   string `json:"copyright"`
	Category    string `json:"category"`

	// LastItemUpdated is the watermark: the maximum publish timestamp among
	// episodes ever merged for this show. Monotonically non-decreasing.
	LastItemUpdated time.Time `json:"last_item_updated"`

	// FailCount counts consecutive failed refreshes. Reset to zero by every
	// successful merge commit.
	FailCount int `json:"fail_count" gorm:"default:0"`

	Episodes []Episode `json:"episodes,omitempty" gorm:"foreignKey:ShowID"`
}

// Episode represents one media item belonging to a show. The MediaURL is the
// dedup key: within one show there is never more than one row per URL.
type Episode struct {
	gorm.Model
	ShowID uint `json:"show_id" gorm:"not null;index:idx_show_media_url,unique;index:idx_show_published"`

	Title       string `json:"title"`
	Description string `json:"description" gorm:"type:text"`
	Author      string `json:"author"`
	PageLink    string `json:"page_link"`

	// Media information from the enclosure.
	MediaURL  string    `json:"media_url" gorm:"not null;index:idx_show_media_url,unique"`
	FileSize  int64     `json:"file_size"` // bytes; 0 means unknown
	MediaKind MediaKind `json:"media_kind" gorm:"default:audio"`

	// DurationMs is the playback length in milliseconds, -1 when unknown.
	DurationMs int64 `json:"duration_ms" gorm:"default:-1"`

	// PublishedAt is always set and never in the future at persistence time.
	PublishedAt time.Time `json:"published_at" gorm:"index:idx_show_published"`

	ArtworkURL string `json:"artwork_url"`

	// Playback state. Preserved across metadata updates from re-parsed feeds.
	Played     bool `json:"played" gorm:"default:false"`
	PositionMs int  `json:"position_ms" gorm:"default:0"`

	DownloadStatus DownloadStatus `json:"download_status"`
	DownloadPath   string         `json:"download_path"`
}

// IsVideo reports whether the episode's enclosure was classified as video.
func (e *Episode) IsVideo() bool {
	return e.MediaKind == MediaKindVideo
}

// HasKnownSize reports whether the feed declared a usable file size.
func (e *Episode) HasKnownSize() bool {
	return e.FileSize > 0
}
