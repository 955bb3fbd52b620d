// Package download fetches episode media files over HTTP into a local
// media directory. Files are written to a temporary name first and renamed
// into place, so a partially written file never shows up as a finished
// download.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures the download behavior.
type Options struct {
	MediaDir     string        // Directory finished files are placed in
	MaxSize      int64         // Maximum file size in bytes (0 = no limit)
	Timeout      time.Duration // Per-download timeout
	UserAgent    string        // User agent string
	ProgressFunc ProgressFunc  // Optional progress callback
}

// ProgressFunc is called during download to report progress.
type ProgressFunc func(downloaded, total int64)

// DefaultOptions returns default download options.
func DefaultOptions(mediaDir string) Options {
	return Options{
		MediaDir:  mediaDir,
		MaxSize:   500 * 1024 * 1024,
		Timeout:   5 * time.Minute,
		UserAgent: "feedsync/1.0",
	}
}

// Result describes a finished download.
type Result struct {
	FilePath      string    // Final path of the downloaded file
	ContentType   string    // Content-Type from response
	ContentLength int64     // Bytes written
	LastModified  time.Time // Last-Modified header if present
}

// Downloader fetches media files for episodes.
type Downloader struct {
	client  *http.Client
	options Options
	log     logrus.FieldLogger
}

// NewDownloader creates a downloader with the given options.
func NewDownloader(options Options, log logrus.FieldLogger) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: options.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				DisableCompression:  true, // media is already compressed
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		options: options,
		log:     log,
	}
}

// Fetch downloads a URL into the media directory and returns the final
// file path. The file is named after the episode ID plus the extension
// taken from the URL.
func (d *Downloader) Fetch(ctx context.Context, url string, episodeID uint) (*Result, error) {
	d.log.WithFields(logrus.Fields{"episode": episodeID, "url": url}).Debug("starting download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", d.options.UserAgent)
	req.Header.Set("Accept", "audio/*,video/*,*/*")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	contentLength := resp.ContentLength
	if d.options.MaxSize > 0 && contentLength > d.options.MaxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", contentLength, d.options.MaxSize)
	}

	if err := os.MkdirAll(d.options.MediaDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating media directory: %w", err)
	}

	finalPath := filepath.Join(d.options.MediaDir, fmt.Sprintf("episode_%d%s", episodeID, extensionFromURL(url)))
	tempPath := finalPath + ".part"

	file, err := os.Create(tempPath)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	written, err := d.copyBody(resp.Body, file, contentLength)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("writing media file: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("finalizing media file: %w", err)
	}

	d.log.WithFields(logrus.Fields{"episode": episodeID, "bytes": written, "path": finalPath}).Debug("download complete")

	result := &Result{
		FilePath:      finalPath,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: written,
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		if t, err := http.ParseTime(lastMod); err == nil {
			result.LastModified = t
		}
	}
	return result, nil
}

func (d *Downloader) copyBody(src io.Reader, dst *os.File, totalSize int64) (int64, error) {
	reader := src
	if d.options.ProgressFunc != nil && totalSize > 0 {
		reader = &progressReader{
			reader:   src,
			total:    totalSize,
			callback: d.options.ProgressFunc,
		}
	}
	if d.options.MaxSize > 0 {
		reader = &io.LimitedReader{R: reader, N: d.options.MaxSize + 1}
	}

	written, err := io.Copy(dst, reader)
	if err != nil {
		return written, err
	}
	if d.options.MaxSize > 0 && written > d.options.MaxSize {
		return written, fmt.Errorf("file exceeds %d bytes", d.options.MaxSize)
	}
	return written, nil
}

// Remove deletes a previously downloaded file. A missing file is not an
// error.
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// extensionFromURL pulls a media file extension out of a URL, defaulting
// to .mp3 when the URL carries none.
func extensionFromURL(url string) string {
	ext := ".mp3"
	if idx := strings.LastIndex(url, "."); idx >= 0 {
		candidate := url[idx+1:]
		if q := strings.Index(candidate, "?"); q > 0 {
			candidate = candidate[:q]
		}
		if isMediaExtension(candidate) {
			ext = "." + candidate
		}
	}
	return ext
}

func isMediaExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case "mp3", "m4a", "aac", "ogg", "opus", "wav", "flac", "mp4", "m4v", "webm":
		return true
	}
	return false
}

// progressReader wraps a reader and reports cumulative progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	callback   ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.downloaded += int64(n)
		p.callback(p.downloaded, p.total)
	}
	return n, err
}
