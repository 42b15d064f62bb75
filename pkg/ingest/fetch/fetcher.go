package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/metrics"
)

// Download describes a distribution written to disk.
type Download struct {
	Kind   edits.Kind
	URL    string
	Path   string
	Bytes  int64
	SHA256 string
}

// Fetcher downloads distributions into a directory and optionally mirrors
// them to object storage.
type Fetcher struct {
	client  *Client
	dir     string
	mirror  Mirror
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher writing into dir. mirror and collector may
// be nil.
func NewFetcher(client *Client, dir string, mirror Mirror, collector *metrics.Collector) *Fetcher {
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Fetcher{
		client:  client,
		dir:     dir,
		mirror:  mirror,
		metrics: collector,
		logger:  slog.Default().With("component", "fetch"),
	}
}

// Download streams rawURL to <dir>/<final path segment>. The body is
// written to a temporary file in the same directory and renamed into
// place, so a partial download never replaces a complete one and repeated
// downloads of the same URL overwrite the same file.
//
// Any failure wraps edits.ErrDownloadFailed. A mirror failure is logged
// and does not fail the download.
func (f *Fetcher) Download(ctx context.Context, kind edits.Kind, rawURL string) (*Download, error) {
	name, err := FileName(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", edits.ErrDownloadFailed, err)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating download directory: %v", edits.ErrDownloadFailed, err)
	}
	dest := filepath.Join(f.dir, name)

	var dl *Download
	err = f.client.Get(ctx, rawURL, func(resp *http.Response) error {
		written, sum, err := writeAtomic(f.dir, dest, resp.Body)
		if err != nil {
			return err
		}
		dl = &Download{Kind: kind, URL: rawURL, Path: dest, Bytes: written, SHA256: sum}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", edits.ErrDownloadFailed, err)
	}

	f.metrics.RecordDownload(string(kind), dl.Bytes)
	f.logger.InfoContext(ctx, "downloaded distribution",
		"kind", kind,
		"url", rawURL,
		"path", dest,
		"bytes", dl.Bytes,
		"sha256", dl.SHA256,
	)

	if err := f.mirror.Put(ctx, kind, dest); err != nil {
		f.logger.WarnContext(ctx, "mirroring distribution failed",
			"kind", kind,
			"path", dest,
			"error", err,
		)
	}

	return dl, nil
}

// writeAtomic copies r into a temp file in dir and renames it to dest.
func writeAtomic(dir, dest string, r io.Reader) (int64, string, error) {
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return 0, "", err
	}
	if err := tmp.Sync(); err != nil {
		return 0, "", fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		committed = true
		return 0, "", fmt.Errorf("renaming download into place: %w", err)
	}
	committed = true

	return written, hex.EncodeToString(h.Sum(nil)), nil
}

// FileName returns the local file name for a download URL: the unescaped
// final path segment.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	seg := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	seg = strings.TrimSpace(filepath.Base(seg))
	if seg == "" || seg == "." || seg == "/" || seg == ".." {
		return "", fmt.Errorf("URL %q has no file name", rawURL)
	}
	return seg, nil
}
