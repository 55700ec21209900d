package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrTooLarge is returned when an upload exceeds MaxImageSize.
	ErrTooLarge = errors.New("storage: file too large")
	// ErrUnsupportedType is returned for content types outside AllowedImageTypes.
	ErrUnsupportedType = errors.New("storage: unsupported file type")
)

// ReadImage reads an image from r up to max bytes and sniffs its content type
// when declared is empty or generic.
func ReadImage(r io.Reader, declared string, max int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > max {
		return nil, "", ErrTooLarge
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if _, ok := ExtensionFor(contentType); !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return data, contentType, nil
}

// ReadFormImage reads a multipart image part.
func ReadFormImage(fh *multipart.FileHeader) ([]byte, string, error) {
	if fh.Size > MaxImageSize {
		return nil, "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return ReadImage(f, fh.Header.Get("Content-Type"), MaxImageSize)
}

// HTTPFetcher downloads remote images, e.g. a logo given by URL.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads an image and returns its bytes and content type.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download status: %d", resp.StatusCode)
	}
	return ReadImage(resp.Body, resp.Header.Get("Content-Type"), MaxImageSize)
}
