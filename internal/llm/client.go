package llm

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends one prompt and returns the raw text of the model's reply.
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single-turn prompt.
type Request struct {
	Image   *Image
	System  string
	Prompt  string
	Context []string // extra user messages sent before Prompt
}

// Image is an optional image attached to a request. Either Data or URL is set;
// URL may be an http(s) URL or a data: URL.
type Image struct {
	MIMEType string
	URL      string
	Data     []byte
}

// DataURL renders the image as a data: URL, or returns URL when no bytes are held.
func (i *Image) DataURL() string {
	if len(i.Data) == 0 {
		return i.URL
	}
	mimeType := i.MIMEType
	if mimeType == "" {
		mimeType = http.DetectContentType(i.Data)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// inline returns the raw bytes and MIME type, decoding a base64 data: URL when needed.
func (i *Image) inline() ([]byte, string, bool) {
	if len(i.Data) > 0 {
		mimeType := i.MIMEType
		if mimeType == "" {
			mimeType = http.DetectContentType(i.Data)
		}
		return i.Data, mimeType, true
	}

	rest, ok := strings.CutPrefix(i.URL, "data:")
	if !ok {
		return nil, "", false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", false
	}
	return data, strings.TrimSuffix(meta, ";base64"), true
}

// Config holds configuration for one LLM provider.
type Config struct {
	HTTPClient  *http.Client
	Provider    string
	APIKey      string
	AccessToken string
	BaseURL     string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	Timeout     time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}
