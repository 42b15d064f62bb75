package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/metrics"
)

// DefaultMaxEntryBytes caps a single decoded entry when no limit is set.
const DefaultMaxEntryBytes = 512 << 20

// TabularExtensions are the entry types that are decoded.
var TabularExtensions = []string{".xlsx", ".xls", ".csv", ".txt"}

// Extraction is the result of extracting one downloaded file.
type Extraction struct {
	// RowSets from every decoded entry, in archive order.
	RowSets []RowSet

	// Entries lists the tabular entries that were read.
	Entries []string

	// Failures lists entries that were skipped because they could not be
	// decoded.
	Failures []*edits.DecodeError
}

// Options configures an Extractor.
type Options struct {
	// MaxEntryBytes caps how much of one entry is read into memory.
	MaxEntryBytes int64

	// Metrics records decode failures. May be nil.
	Metrics *metrics.Collector
}

// Extractor reads tabular data out of CMS distributions.
type Extractor struct {
	maxEntryBytes int64
	metrics       *metrics.Collector
	logger        *slog.Logger
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.MaxEntryBytes <= 0 {
		opts.MaxEntryBytes = DefaultMaxEntryBytes
	}
	return &Extractor{
		maxEntryBytes: opts.MaxEntryBytes,
		metrics:       opts.Metrics,
		logger:        slog.Default().With("component", "extract"),
	}
}

// Extract decodes every tabular entry in the file at filePath. Zip
// archives are read entry by entry and nested archives one level deep; a
// bare .xlsx, .csv or .txt file is treated as a single-entry archive.
//
// hints are lowercase header fragments used to find each table's header
// row. A missing or corrupt file is an error. An entry that cannot be
// decoded is logged, recorded in Extraction.Failures and skipped.
func (e *Extractor) Extract(ctx context.Context, kind edits.Kind, filePath string, hints []string) (*Extraction, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filePath)
	}

	out := &Extraction{}
	name := filepath.Base(filePath)

	zipped, err := isZip(filePath)
	if err != nil {
		return nil, err
	}

	if !zipped {
		if !isTabular(name) {
			return nil, fmt.Errorf("%s is neither a zip archive nor a tabular file", name)
		}
		data, err := e.readFile(filePath)
		if err != nil {
			return nil, err
		}
		e.decodeEntry(ctx, kind, name, data, hints, out)
		return out, nil
	}

	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", name, err)
	}
	defer zr.Close()

	if err := e.walkArchive(ctx, kind, &zr.Reader, "", hints, 0, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Extractor) walkArchive(ctx context.Context, kind edits.Kind, zr *zip.Reader, prefix string, hints []string, depth int, out *Extraction) error {
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || isJunk(f.Name) {
			continue
		}

		entry := prefix + f.Name
		lower := strings.ToLower(f.Name)

		switch {
		case strings.HasSuffix(lower, ".zip"):
			if depth > 0 {
				e.logger.DebugContext(ctx, "skipping deeply nested archive", "entry", entry)
				continue
			}
			data, err := e.readEntry(f)
			if err != nil {
				e.fail(ctx, kind, entry, err, out)
				continue
			}
			nested, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				e.fail(ctx, kind, entry, fmt.Errorf("opening nested archive: %w", err), out)
				continue
			}
			if err := e.walkArchive(ctx, kind, nested, entry+"/", hints, depth+1, out); err != nil {
				return err
			}

		case isTabular(lower):
			data, err := e.readEntry(f)
			if err != nil {
				e.fail(ctx, kind, entry, err, out)
				continue
			}
			e.decodeEntry(ctx, kind, entry, data, hints, out)
		}
	}
	return nil
}

func (e *Extractor) decodeEntry(ctx context.Context, kind edits.Kind, entry string, data []byte, hints []string, out *Extraction) {
	out.Entries = append(out.Entries, entry)

	var (
		sets []RowSet
		err  error
	)
	switch strings.ToLower(path.Ext(entry)) {
	case ".xlsx":
		sets, err = decodeXLSX(entry, data, hints)
	case ".xls":
		err = errLegacyWorkbook
	default:
		sets, err = decodeDelimited(entry, data, hints)
	}
	if err != nil {
		e.fail(ctx, kind, entry, err, out)
		return
	}

	rows := 0
	for _, rs := range sets {
		rows += len(rs.Rows)
	}
	e.logger.DebugContext(ctx, "decoded entry",
		"kind", kind,
		"entry", entry,
		"tables", len(sets),
		"rows", rows,
	)
	out.RowSets = append(out.RowSets, sets...)
}

func (e *Extractor) fail(ctx context.Context, kind edits.Kind, entry string, cause error, out *Extraction) {
	derr := &edits.DecodeError{Entry: entry, Cause: cause}
	out.Failures = append(out.Failures, derr)
	e.metrics.RecordDecodeFailure(string(kind))
	e.logger.WarnContext(ctx, "skipping undecodable entry",
		"kind", kind,
		"entry", entry,
		"error", derr,
	)
}

func (e *Extractor) readEntry(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > uint64(e.maxEntryBytes) {
		return nil, fmt.Errorf("entry is %d bytes, limit is %d", f.UncompressedSize64, e.maxEntryBytes)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return e.readLimited(rc)
}

func (e *Extractor) readFile(filePath string) ([]byte, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return e.readLimited(f)
}

func (e *Extractor) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, e.maxEntryBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > e.maxEntryBytes {
		return nil, fmt.Errorf("entry exceeds %d bytes", e.maxEntryBytes)
	}
	return data, nil
}

// isZip reports whether the file is a zip archive by extension or magic.
// Workbooks are zip containers too, so tabular names are never archives.
func isZip(filePath string) (bool, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".zip") {
		return true, nil
	}
	if isTabular(filePath) {
		return false, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	magic := make([]byte, 4)
	n, _ := io.ReadFull(f, magic)
	return n == 4 && bytes.Equal(magic, []byte("PK\x03\x04")), nil
}

func isTabular(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range TabularExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isJunk skips resource forks and OS metadata that ride along in archives.
func isJunk(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(name, "__MACOSX/") || strings.HasPrefix(base, "._") || strings.HasPrefix(base, "~$")
}
