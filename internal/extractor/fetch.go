package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
	"github.com/Veraticus/billsplit/internal/llm"
)

// DefaultMaxImageBytes caps downloaded bill images at 10 MiB.
const DefaultMaxImageBytes = 10 << 20

var supportedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// ImageFetcher downloads bill images referenced by URL.
type ImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewImageFetcher creates a fetcher. A nil client uses a 30s-timeout default;
// maxBytes <= 0 means DefaultMaxImageBytes.
func NewImageFetcher(client *http.Client, maxBytes int64) *ImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &ImageFetcher{client: client, maxBytes: maxBytes}
}

// Fetch returns the image at rawURL. data: URLs are decoded in place.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) (llm.Image, error) {
	if strings.HasPrefix(rawURL, "data:") {
		return f.decodeDataURL(rawURL)
	}
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return llm.Image{}, fmt.Errorf("%w: unsupported image URL %q", common.ErrValidation, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: invalid image URL: %w", common.ErrValidation, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: image download failed: %w", common.ErrTransportFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return llm.Image{}, fmt.Errorf("%w: image download returned status %d", common.ErrTransportFailure, resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return llm.Image{}, fmt.Errorf("%w: image is %d bytes, limit is %d", common.ErrValidation, resp.ContentLength, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: reading image: %w", common.ErrTransportFailure, err)
	}

	return f.check(data, resp.Header.Get("Content-Type"), rawURL)
}

func (f *ImageFetcher) decodeDataURL(rawURL string) (llm.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return llm.Image{}, fmt.Errorf("%w: data URL must be base64 encoded", common.ErrValidation)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: invalid base64 image: %w", common.ErrValidation, err)
	}
	return f.check(data, strings.TrimSuffix(meta, ";base64"), rawURL)
}

func (f *ImageFetcher) check(data []byte, contentType, source string) (llm.Image, error) {
	if int64(len(data)) > f.maxBytes {
		return llm.Image{}, fmt.Errorf("%w: image exceeds %d bytes", common.ErrValidation, f.maxBytes)
	}
	if len(data) == 0 {
		return llm.Image{}, fmt.Errorf("%w: image is empty", common.ErrValidation)
	}

	mimeType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mimeType = mt
		}
	}
	if !supportedTypes[mimeType] {
		sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
		mimeType = sniffed
	}
	if !supportedTypes[mimeType] {
		return llm.Image{}, fmt.Errorf("%w: unsupported image type %q", common.ErrValidation, mimeType)
	}

	return llm.Image{MIMEType: mimeType, Data: data, URL: source}, nil
}
