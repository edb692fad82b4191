package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DefaultGeonamesURL is the geonames US postal code dump.
const DefaultGeonamesURL = "https://download.geonames.org/export/zip/US.zip"

// DefaultMaxBytes caps a download; the US archive is around 2MB.
const DefaultMaxBytes = 256 << 20

// defaultClient is used when HTTP.Client is nil. Per-fetch deadlines come
// from the caller's context.
var defaultClient = &http.Client{
	Timeout: 2 * time.Minute,
}

// HTTP downloads the dataset, always the latest copy.
type HTTP struct {
	URL    string
	Member string // file inside a zip payload, DefaultMember when empty
	// CachePath, when set, receives the downloaded payload so that a File
	// source can serve it if the URL is unreachable later.
	CachePath string
	Client    *http.Client
	Logger    *zap.Logger
	// MaxBytes fails downloads larger than this, DefaultMaxBytes when zero.
	MaxBytes int64
}

func (h *HTTP) Name() string { return "http:" + h.URL }

func (h *HTTP) FetchRaw(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	client := h.Client
	if client == nil {
		client = defaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not download postal data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", h.URL, resp.StatusCode)
	}

	limit := h.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("could not read postal data response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("GET %s: payload exceeds %d bytes", h.URL, limit)
	}

	data, err := unpack(body, h.Member)
	if err != nil {
		return nil, err
	}

	if h.CachePath != "" {
		if err := writeCache(h.CachePath, body); err != nil {
			h.logger().Warn("couldn't save postal data cache", zap.String("path", h.CachePath), zap.Error(err))
		}
	}
	return data, nil
}

func (h *HTTP) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

// writeCache replaces path atomically so a concurrent reader never sees a
// partial file.
func writeCache(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	success = true
	return nil
}
