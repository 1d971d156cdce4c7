// Package media implements the worker-side pipeline: fetching attachment
// media, normalizing it to audio, and producing a transcription result.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/daracheol/voxscribe/internal/domain"
)

// Downloader fetches attachment media from the platform CDN into temp
// files.
type Downloader struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewDownloader creates a downloader with the given size cap.
func NewDownloader(maxBytes int64) *Downloader {
	return &Downloader{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		maxBytes:   maxBytes,
	}
}

// SetHTTPClient overrides the HTTP client, used by tests.
func (d *Downloader) SetHTTPClient(hc *http.Client) { d.httpClient = hc }

// Download fetches the media at mediaURL into a temp file and returns its
// path. Returns domain.ErrFileTooLarge when the body exceeds the cap.
// Callers own the returned file and must remove it.
func (d *Downloader) Download(ctx context.Context, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return "", domain.ErrFileTooLarge
	}

	tmp, err := os.CreateTemp("", "voxscribe-media-*"+extensionFromURL(mediaURL))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	// Read one byte past the cap so an oversized body is distinguishable
	// from one that exactly hits it.
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, d.maxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	if closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", closeErr
	}
	if n > d.maxBytes {
		_ = os.Remove(tmp.Name())
		return "", domain.ErrFileTooLarge
	}

	return tmp.Name(), nil
}

// extensionFromURL extracts a usable file extension from the media URL,
// ignoring query parameters the CDN appends.
func extensionFromURL(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) > 8 {
		return ""
	}
	return ext
}
