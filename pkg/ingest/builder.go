package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/extract"
	"claimforge/compliance/pkg/ingest/fetch"
	"claimforge/compliance/pkg/ingest/locator"
	"claimforge/compliance/pkg/ingest/normalize"
	"claimforge/compliance/pkg/telemetry/logging"
	"claimforge/compliance/pkg/telemetry/metrics"
	"claimforge/compliance/pkg/telemetry/tracing"
)

// Committer persists a staged snapshot atomically. *store.Store implements
// it.
type Committer interface {
	ReplaceSnapshot(ctx context.Context, snap *edits.Snapshot) error
}

// Deps are optional collaborators of a Builder. Zero values select the
// defaults.
type Deps struct {
	// HTTPClient is the transport for index pages and downloads.
	HTTPClient *http.Client

	// Mirror archives downloaded distributions.
	Mirror fetch.Mirror

	// Classifier assigns provider types to tables.
	Classifier normalize.Classifier

	// Scorer ranks candidate links by date.
	Scorer locator.DateScorer

	Metrics *metrics.Collector

	// OnStaged is called after each kind is staged, successfully or not.
	OnStaged func(*KindReport)
}

// Builder stages every requested edit kind and commits them as one
// snapshot. A Builder is safe for sequential reuse; concurrent rebuilds
// are coordinated by the gate.
type Builder struct {
	sources    config.SourcesConfig
	committer  Committer
	locator    *locator.Locator
	fetcher    *fetch.Fetcher
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	metrics    *metrics.Collector
	onStaged   func(*KindReport)
	logger     *slog.Logger
}

// NewBuilder creates a Builder over the configured sources.
func NewBuilder(cfg *config.SourcesConfig, committer Committer, deps Deps) *Builder {
	client := fetch.NewClient(cfg, deps.HTTPClient)
	return &Builder{
		sources:    *cfg,
		committer:  committer,
		locator:    locator.New(client, deps.Scorer),
		fetcher:    fetch.NewFetcher(client, cfg.DownloadDir, deps.Mirror, deps.Metrics),
		extractor:  extract.New(extract.Options{MaxEntryBytes: cfg.MaxEntryBytes, Metrics: deps.Metrics}),
		normalizer: normalize.New(deps.Classifier),
		metrics:    deps.Metrics,
		onStaged:   deps.OnStaged,
		logger:     slog.Default().With("component", "ingest.builder"),
	}
}

// Locate ranks the download candidates for kind on its configured index
// page without downloading anything.
func (b *Builder) Locate(ctx context.Context, kind edits.Kind) ([]locator.Candidate, error) {
	src := b.source(kind)
	if src.IndexURL == "" {
		return nil, edits.NewBuildError(kind, edits.StageLocate,
			fmt.Errorf("%w: no index_url configured", edits.ErrSourceNotFound))
	}
	return b.locator.LocateAll(ctx, src.IndexURL, kind)
}

// Build stages each kind and, only when all of them succeed, replaces
// their tables in a single transaction. An empty kinds list builds every
// kind. On failure nothing is replaced and the returned Report still
// describes what was staged.
func (b *Builder) Build(ctx context.Context, kinds []edits.Kind) (*Report, error) {
	if len(kinds) == 0 {
		kinds = edits.AllKinds()
	}
	kinds = uniqueKinds(kinds)

	report := &Report{
		BuildID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	ctx = logging.WithBuildID(ctx, report.BuildID)
	ctx, span := tracing.Start(ctx, "ingest.build", tracing.BuildID(report.BuildID))
	var buildErr error
	defer func() { tracing.End(span, buildErr) }()
	b.logger.InfoContext(ctx, "build started", "kinds", kinds)

	snap := &edits.Snapshot{}
	for _, kind := range kinds {
		kr, res, err := b.stage(logging.WithKind(ctx, string(kind)), kind)
		report.Kinds = append(report.Kinds, kr)
		if b.onStaged != nil {
			b.onStaged(kr)
		}
		if err != nil {
			report.FinishedAt = time.Now().UTC()
			b.logger.ErrorContext(ctx, "build aborted, snapshot unchanged",
				"kind", kind,
				"error", err,
			)
			buildErr = err
			return report, err
		}

		res.Apply(snap)
		snap.Builds = append(snap.Builds, edits.BuildRecord{
			BuildID:     report.BuildID,
			Kind:        kind,
			SourceURL:   kr.SourceURL,
			SourceFiles: baseNames(kr.Files),
			RowCount:    kr.Rows,
			Digest:      kr.Digest,
			StartedAt:   report.StartedAt,
			FinishedAt:  time.Now().UTC(),
		})
	}

	commitCtx, commitSpan := tracing.Start(ctx, "ingest.commit")
	err := b.committer.ReplaceSnapshot(commitCtx, snap)
	tracing.End(commitSpan, err)
	if err != nil {
		b.metrics.RecordCommit("failure")
		report.FinishedAt = time.Now().UTC()
		buildErr = fmt.Errorf("build %s: %s: %w", report.BuildID, edits.StageCommit, err)
		return report, buildErr
	}
	b.metrics.RecordCommit("success")

	report.Committed = true
	report.FinishedAt = time.Now().UTC()
	b.logger.InfoContext(ctx, "build committed",
		"kinds", kinds,
		"rows", report.Rows(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// stage produces the canonical rows of one kind without touching the
// store.
func (b *Builder) stage(ctx context.Context, kind edits.Kind) (*KindReport, *normalize.Result, error) {
	start := time.Now()
	kr := &KindReport{Kind: kind}

	ctx, span := tracing.Start(ctx, "ingest.stage", tracing.Kind(string(kind)))
	res, err := b.stageRows(ctx, kind, kr)
	kr.Duration = time.Since(start)
	if res != nil {
		span.SetAttributes(
			attribute.Int(tracing.AttrRows, res.Count()),
			attribute.Int(tracing.AttrFiles, len(kr.Files)),
		)
	}
	tracing.End(span, err)
	if err != nil {
		kr.Error = err.Error()
		b.metrics.RecordBuild(string(kind), "failure", kr.Duration, 0)
		return kr, nil, err
	}

	kr.Tables = res.Tables
	kr.RowsRead = res.RowsRead
	kr.Rows = res.Count()
	kr.Dropped = res.Dropped
	kr.Duplicates = res.Duplicates
	kr.Digest = digest(res)

	b.metrics.RecordBuild(string(kind), "success", kr.Duration, kr.Rows)
	b.logger.InfoContext(ctx, "staged edits",
		"kind", kind,
		"source_url", kr.SourceURL,
		"files", len(kr.Files),
		"rows", kr.Rows,
		"dropped", kr.Dropped,
		"decode_failures", len(kr.DecodeFailures),
		"duration", kr.Duration,
	)
	return kr, res, nil
}

func (b *Builder) stageRows(ctx context.Context, kind edits.Kind, kr *KindReport) (*normalize.Result, error) {
	files, err := b.acquire(ctx, kind, kr)
	if err != nil {
		return nil, err
	}
	kr.Files = files

	hints := normalize.Hints(kind)
	var parts []*normalize.Result
	for _, file := range files {
		ex, err := b.extractor.Extract(ctx, kind, file, hints)
		if err != nil {
			return nil, edits.NewBuildError(kind, edits.StageExtract, err)
		}
		kr.Entries += len(ex.Entries)
		for _, f := range ex.Failures {
			kr.DecodeFailures = append(kr.DecodeFailures, f.Entry)
		}

		part, err := b.normalizer.Normalize(kind, filepath.Base(file), ex.RowSets)
		if err != nil && !errors.Is(err, edits.ErrEmptyDataset) {
			return nil, edits.NewBuildError(kind, edits.StageNormalize, err)
		}
		parts = append(parts, part)
	}

	res := normalize.Merge(kind, parts...)
	if res.Count() == 0 {
		return nil, edits.NewBuildError(kind, edits.StageNormalize,
			fmt.Errorf("%w: %s from %d file(s), %d tables, %d rows read",
				edits.ErrEmptyDataset, kind.Title(), len(files), res.Tables, res.RowsRead))
	}
	return res, nil
}

// acquire returns the local files to extract for kind: the configured
// local path, or the located and downloaded distribution.
func (b *Builder) acquire(ctx context.Context, kind edits.Kind, kr *KindReport) ([]string, error) {
	src := b.source(kind)
	if src.LocalPath != "" {
		return []string{src.LocalPath}, nil
	}

	cands, err := b.Locate(ctx, kind)
	if err != nil {
		return nil, err
	}
	picks := cands[:1]
	if src.Siblings {
		picks = locator.Siblings(cands)
	}
	kr.SourceURL = picks[0].URL

	files := make([]string, 0, len(picks))
	for _, c := range picks {
		dl, err := b.fetcher.Download(ctx, kind, c.URL)
		if err != nil {
			return nil, edits.NewBuildError(kind, edits.StageDownload, err)
		}
		files = append(files, dl.Path)
	}
	return files, nil
}

func (b *Builder) source(kind edits.Kind) config.SourceConfig {
	switch kind {
	case edits.KindPTP:
		return b.sources.PTP
	case edits.KindMUE:
		return b.sources.MUE
	case edits.KindAOC:
		return b.sources.AOC
	}
	return config.SourceConfig{}
}

func digest(res *normalize.Result) string {
	switch res.Kind {
	case edits.KindPTP:
		return edits.DigestPTP(res.PTP)
	case edits.KindMUE:
		return edits.DigestMUE(res.MUE)
	case edits.KindAOC:
		return edits.DigestAOC(res.AOC)
	}
	return ""
}

func uniqueKinds(kinds []edits.Kind) []edits.Kind {
	seen := make(map[edits.Kind]bool, len(kinds))
	out := make([]edits.Kind, 0, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
