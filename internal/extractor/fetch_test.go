package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/billsplit/internal/common"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000000000000000")

func TestImageFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bill.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngHeader)
		case "/sniffed":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(pngHeader)
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html><body>nope</body></html>"))
		case "/big":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(bytes.Repeat([]byte{0x89}, 2048))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewImageFetcher(server.Client(), 1024)
	ctx := context.Background()

	t.Run("png", func(t *testing.T) {
		img, err := fetcher.Fetch(ctx, server.URL+"/bill.png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, pngHeader, img.Data)
	})

	t.Run("sniffs generic content type", func(t *testing.T) {
		img, err := fetcher.Fetch(ctx, server.URL+"/sniffed")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/page.html")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("too large", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/big")
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, server.URL+"/missing")
		assert.ErrorIs(t, err, common.ErrTransportFailure)
	})

	t.Run("data url", func(t *testing.T) {
		img, err := fetcher.Fetch(ctx, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngHeader))
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, pngHeader, img.Data)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, "ftp://example.com/bill.png")
		assert.ErrorIs(t, err, common.ErrValidation)
	})
}
