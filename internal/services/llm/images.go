package llm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxImageBytes caps a downloaded render; larger images are rejected
const MaxImageBytes = 15 << 20

// ImageLoader downloads rendered frame images so they can be sent inline
type ImageLoader interface {
	Load(ctx context.Context, url string) ([]byte, string, error)
}

// HTTPImageLoader fetches images over HTTP
type HTTPImageLoader struct {
	httpClient *http.Client
}

// NewHTTPImageLoader creates a loader. httpClient may be nil.
func NewHTTPImageLoader(httpClient *http.Client) *HTTPImageLoader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPImageLoader{httpClient: httpClient}
}

// Load returns the image bytes and their MIME type
func (l *HTTPImageLoader) Load(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image download returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
