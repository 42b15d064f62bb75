package store

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/metrics"
)

func openTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	cfg := config.StoreConfig{
		Driver:          driver,
		DSN:             filepath.Join(t.TempDir(), "rules", "rules.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		WALMode:         true,
		BusyTimeout:     time.Second,
		InsertBatchSize: 2,
	}
	s, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSnapshot() *edits.Snapshot {
	return &edits.Snapshot{
		PTP: []edits.PTPEdit{
			{Column1: "99214", Column2: "99213", ModifierIndicator: "1", EffectiveDate: "2026-01-01"},
			{Column1: "99215", Column2: "36415", ModifierIndicator: "0", ProviderType: edits.ProviderHospital},
			{Column1: "99215", Column2: "99213", ModifierIndicator: "9", DeletionDate: "2025-06-30"},
		},
		MUE: []edits.MUELimit{
			{Code: "99213", MaxUnits: 1, ServiceType: edits.ProviderPractitioner},
			{Code: "99213", MaxUnits: 2, ServiceType: edits.ProviderHospital},
			{Code: "J1885", MaxUnits: 8},
		},
		AOC: []edits.AOCEdit{
			{AddOnCode: "22614", PrimaryCode: "22612"},
			{AddOnCode: "22614", PrimaryCode: "22630", EffectiveDate: "2027-01-01"},
		},
		Builds: []edits.BuildRecord{
			{BuildID: "b1", Kind: edits.KindPTP, SourceFiles: []string{"ptp.zip"}, RowCount: 3, Digest: "d1",
				StartedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), FinishedAt: time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)},
		},
	}
}

func TestStore_OpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql", DSN: "x"})
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestStore_EmptyIsNotReady(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	ok, err := s.HasPTPRows(ctx)
	if err != nil {
		t.Fatalf("HasPTPRows() error = %v", err)
	}
	if ok {
		t.Error("empty store reported PTP rows")
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if counts != (TableCounts{}) {
		t.Errorf("Counts() = %+v, want zeros", counts)
	}
}

func TestStore_ReplaceAndLookup(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatalf("ReplaceSnapshot() error = %v", err)
	}
	if s.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", s.Generation())
	}

	counts, _ := s.Counts(ctx)
	if counts != (TableCounts{PTP: 3, MUE: 3, AOC: 2}) {
		t.Errorf("Counts() = %+v", counts)
	}

	// Both orderings come back from a single query.
	ptp, err := s.PTPEdits(ctx, []string{"99213", "99214", "99215", "99213"}, edits.ProviderPractitioner, "")
	if err != nil {
		t.Fatalf("PTPEdits() error = %v", err)
	}
	if len(ptp) != 2 {
		t.Fatalf("PTPEdits() returned %d rows, want 2 (hospital row excluded): %+v", len(ptp), ptp)
	}

	all, _ := s.PTPEdits(ctx, []string{"36415", "99215"}, edits.ProviderUnscoped, "")
	if len(all) != 1 {
		t.Errorf("unscoped claim should match scoped rows, got %d", len(all))
	}

	dated, _ := s.PTPEdits(ctx, []string{"99213", "99214", "99215"}, edits.ProviderUnscoped, "2025-12-01")
	if len(dated) != 0 {
		t.Errorf("date filter: got %+v, want none (one not yet effective, one deleted)", dated)
	}

	if rows, _ := s.PTPEdits(ctx, []string{"99213"}, "", ""); rows != nil {
		t.Error("a single code cannot form a pair")
	}

	mue, err := s.MUELimits(ctx, []string{"99213", "J1885"}, edits.ProviderPractitioner, "")
	if err != nil {
		t.Fatalf("MUELimits() error = %v", err)
	}
	if len(mue) != 2 || mue[0].MaxUnits != 1 || mue[1].Code != "J1885" {
		t.Errorf("MUELimits() = %+v", mue)
	}

	aoc, err := s.AOCEdits(ctx, []string{"22614"}, "2026-06-01")
	if err != nil {
		t.Fatalf("AOCEdits() error = %v", err)
	}
	if len(aoc) != 1 || aoc[0].PrimaryCode != "22612" {
		t.Errorf("AOCEdits() = %+v", aoc)
	}

	builds, err := s.LatestBuilds(ctx)
	if err != nil {
		t.Fatalf("LatestBuilds() error = %v", err)
	}
	if len(builds) != 1 || builds[0].BuildID != "b1" || builds[0].SourceFiles[0] != "ptp.zip" {
		t.Errorf("LatestBuilds() = %+v", builds)
	}
	if !builds[0].FinishedAt.Equal(time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)) {
		t.Errorf("FinishedAt = %v", builds[0].FinishedAt)
	}
}

func TestStore_PartialSnapshotLeavesOtherKinds(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	mueDigest, _ := s.TableDigest(ctx, edits.KindMUE)

	err := s.ReplaceSnapshot(ctx, &edits.Snapshot{
		PTP: []edits.PTPEdit{{Column1: "11111", Column2: "22222", ModifierIndicator: "0"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	counts, _ := s.Counts(ctx)
	if counts.PTP != 1 || counts.MUE != 3 || counts.AOC != 2 {
		t.Errorf("Counts() = %+v, want PTP replaced and others kept", counts)
	}
	if d, _ := s.TableDigest(ctx, edits.KindMUE); d != mueDigest {
		t.Error("MUE table changed by a PTP-only snapshot")
	}

	if err := s.ReplaceSnapshot(ctx, &edits.Snapshot{}); err == nil {
		t.Error("empty snapshot should be rejected")
	}
}

func TestStore_FailedReplaceRollsBack(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	// Duplicate build keys violate the primary key after PTP was rewritten.
	bad := &edits.Snapshot{
		PTP: []edits.PTPEdit{{Column1: "11111", Column2: "22222"}},
		Builds: []edits.BuildRecord{
			{BuildID: "b2", Kind: edits.KindPTP, Digest: "x"},
			{BuildID: "b2", Kind: edits.KindPTP, Digest: "x"},
		},
	}
	err := s.ReplaceSnapshot(ctx, bad)
	if err == nil {
		t.Fatal("expected primary key violation")
	}
	var storeErr *edits.StoreError
	if !errors.As(err, &storeErr) || storeErr.Operation != "insert_build" {
		t.Errorf("error = %v, want StoreError for insert_build", err)
	}

	counts, _ := s.Counts(ctx)
	if counts.PTP != 3 {
		t.Errorf("PTP rows = %d after failed replace, want previous 3", counts.PTP)
	}
	if s.Generation() != 1 {
		t.Errorf("Generation() = %d, failed replace must not bump it", s.Generation())
	}
}

func TestStore_TableDigestMatchesCanonicalRows(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	snap := testSnapshot()
	if err := s.ReplaceSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	sorted, _ := edits.SortPTP(append([]edits.PTPEdit(nil), snap.PTP...))
	got, err := s.TableDigest(ctx, edits.KindPTP)
	if err != nil {
		t.Fatal(err)
	}
	if want := edits.DigestPTP(sorted); got != want {
		t.Errorf("TableDigest() = %s, want %s", got, want)
	}

	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	again, _ := s.TableDigest(ctx, edits.KindPTP)
	if again != got {
		t.Error("replacing with identical rows changed the digest")
	}

	if _, err := s.TableDigest(ctx, edits.Kind("x")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestStore_RecommitSameBuildUpserts(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	again := testSnapshot()
	again.Builds[0].Digest = "d2"
	again.Builds[0].FinishedAt = time.Date(2026, 1, 2, 0, 2, 0, 0, time.UTC)
	if err := s.ReplaceSnapshot(ctx, again); err != nil {
		t.Fatalf("ReplaceSnapshot() with same build id error = %v", err)
	}

	builds, err := s.LatestBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(builds) != 1 {
		t.Fatalf("LatestBuilds() = %+v, want one record", builds)
	}
	if builds[0].Digest != "d2" || !builds[0].FinishedAt.Equal(again.Builds[0].FinishedAt) {
		t.Errorf("LatestBuilds()[0] = %+v, want recommitted record", builds[0])
	}
}

func TestStore_LatestBuildsOrdersSubsecondTimes(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()

	snap := testSnapshot()
	snap.Builds = []edits.BuildRecord{
		{BuildID: "whole", Kind: edits.KindPTP, Digest: "a",
			FinishedAt: time.Date(2026, 1, 2, 0, 0, 5, 0, time.UTC)},
		{BuildID: "half", Kind: edits.KindPTP, Digest: "b",
			FinishedAt: time.Date(2026, 1, 2, 0, 0, 5, 500_000_000, time.UTC)},
	}
	if err := s.ReplaceSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}

	builds, err := s.LatestBuilds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(builds) != 1 || builds[0].BuildID != "half" {
		t.Errorf("LatestBuilds() = %+v, want build finished at 00:00:05.5", builds)
	}
}

func TestTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 500_000_000, time.UTC)
	got, err := parseTime(formatTime(ts))
	if err != nil || !got.Equal(ts) {
		t.Errorf("parseTime(formatTime()) = %v, %v; want %v", got, err, ts)
	}
	if formatTime(ts) <= formatTime(ts.Truncate(time.Second)) {
		t.Error("formatted timestamps do not sort in time order")
	}

	if got, err := parseTime(""); err != nil || !got.IsZero() {
		t.Errorf("parseTime(\"\") = %v, %v; want zero time", got, err)
	}
	if got, err := parseTime("2026-01-02T03:04:05.5Z"); err != nil || !got.Equal(ts) {
		t.Errorf("parseTime(RFC3339Nano) = %v, %v", got, err)
	}
	if _, err := parseTime("not a time"); err == nil {
		t.Error("parseTime() accepted a corrupt timestamp")
	}
}

func TestStore_ClosedIsUnavailable(t *testing.T) {
	s := openTestStore(t, "sqlite")
	s.Close()
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	_, err := s.HasPTPRows(context.Background())
	if !errors.Is(err, edits.ErrRuleStoreUnavailable) {
		t.Errorf("error = %v, want ErrRuleStoreUnavailable", err)
	}
}

func TestDialect_Rebind(t *testing.T) {
	pg := dialects["postgres"]
	got := pg.rebind("SELECT a FROM t WHERE b IN (?, ?) AND c = ?")
	if want := "SELECT a FROM t WHERE b IN ($1, $2) AND c = $3"; got != want {
		t.Errorf("rebind() = %q, want %q", got, want)
	}
	if q := dialects["sqlite"].rebind("x = ?"); q != "x = ?" {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestDialect_DSN(t *testing.T) {
	cfg := config.StoreConfig{DSN: "data/rules.db", WALMode: true, BusyTimeout: 5 * time.Second}
	if got := dialects["sqlite"].dsn(cfg); got != "data/rules.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)" {
		t.Errorf("sqlite dsn = %q", got)
	}
	if got := dialects["sqlite3"].dsn(cfg); got != "data/rules.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL" {
		t.Errorf("sqlite3 dsn = %q", got)
	}
	cfg.DSN = "postgres://u@localhost/rules?sslmode=disable"
	if got := dialects["postgres"].dsn(cfg); got != cfg.DSN {
		t.Errorf("postgres dsn = %q", got)
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newStore(db, dialects["postgres"], 2), mock
}

func TestPostgres_PTPEditsQuery(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM ptp_edits WHERE column1 IN ($1, $2) AND column2 IN ($3, $4) AND column1 <> column2 AND (provider_type = $5 OR provider_type = '') AND (effective_date = '' OR effective_date <= $6) AND (deletion_date = '' OR deletion_date > $7)",
	)).
		WithArgs("99213", "99214", "99213", "99214", "practitioner", "2026-02-01", "2026-02-01").
		WillReturnRows(sqlmock.NewRows([]string{"column1", "column2", "modifier_indicator", "effective_date", "deletion_date", "provider_type", "rationale", "source_file"}).
			AddRow("99214", "99213", "1", "2026-01-01", "", "", "", "ptp.txt"))

	rows, err := s.PTPEdits(context.Background(), []string{"99214", "99213"}, edits.ProviderPractitioner, "2026-02-01")
	if err != nil {
		t.Fatalf("PTPEdits() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Column1 != "99214" {
		t.Errorf("PTPEdits() = %+v", rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_ReplaceSnapshotBatches(t *testing.T) {
	s, mock := newMockStore(t)
	snap := &edits.Snapshot{
		AOC: []edits.AOCEdit{
			{AddOnCode: "22614", PrimaryCode: "22612"},
			{AddOnCode: "22614", PrimaryCode: "22630"},
			{AddOnCode: "22632", PrimaryCode: "22630"},
		},
		Builds: []edits.BuildRecord{{BuildID: "b1", Kind: edits.KindAOC, RowCount: 3, Digest: "d"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM aoc_edits").WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aoc_edits (" + aocColumns + ") VALUES ($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aoc_edits ("+aocColumns+") VALUES ($1, $2, $3, $4, $5, $6)")).
		WithArgs("22632", "22630", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO snapshot_builds").
		WithArgs("b1", "aoc", "", "[]", 3, "d", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := s.ReplaceSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("ReplaceSnapshot() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_ReplaceSnapshotRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM ptp_edits").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := s.ReplaceSnapshot(context.Background(), &edits.Snapshot{PTP: []edits.PTPEdit{{Column1: "1", Column2: "2"}}})
	var storeErr *edits.StoreError
	if !errors.As(err, &storeErr) || storeErr.Backend != "postgres" || storeErr.Operation != "replace_ptp" {
		t.Fatalf("error = %v, want postgres replace_ptp StoreError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPostgres_QueryFailureIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT 1 FROM ptp_edits").WillReturnError(errors.New("relation does not exist"))

	_, err := s.HasPTPRows(context.Background())
	if !errors.Is(err, edits.ErrRuleStoreUnavailable) {
		t.Errorf("error = %v, want ErrRuleStoreUnavailable", err)
	}
}

func TestCachedSource(t *testing.T) {
	s := openTestStore(t, "sqlite")
	ctx := context.Background()
	if err := s.ReplaceSnapshot(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{Enabled: true, Namespace: "test"}, reg)
	c := NewCachedSource(s, 16, time.Minute, collector)

	for i := 0; i < 3; i++ {
		rows, err := c.PTPEdits(ctx, []string{"99214", "99213"}, "", "")
		if err != nil || len(rows) != 1 {
			t.Fatalf("PTPEdits() = %+v, %v", rows, err)
		}
	}
	// Code order does not change the key.
	if _, err := c.PTPEdits(ctx, []string{"99213", "99214"}, "", ""); err != nil {
		t.Fatal(err)
	}

	if got := counterValue(t, reg, "test_cache_hits_total", CachePTP); got != 3 {
		t.Errorf("ptp cache hits = %v, want 3", got)
	}
	if got := counterValue(t, reg, "test_cache_misses_total", CachePTP); got != 1 {
		t.Errorf("ptp cache misses = %v, want 1", got)
	}

	// A replace through the store invalidates cached lookups.
	if err := s.ReplaceSnapshot(ctx, &edits.Snapshot{PTP: []edits.PTPEdit{{Column1: "11111", Column2: "22222"}}}); err != nil {
		t.Fatal(err)
	}
	rows, _ := c.PTPEdits(ctx, []string{"99214", "99213"}, "", "")
	if len(rows) != 0 {
		t.Errorf("stale cached rows served after replace: %+v", rows)
	}

	if ok, _ := c.HasPTPRows(ctx); !ok {
		t.Error("HasPTPRows() = false")
	}
	mue, _ := c.MUELimits(ctx, []string{"J1885"}, "", "")
	aoc, _ := c.AOCEdits(ctx, []string{"22614"}, "")
	if len(mue) != 1 || len(aoc) != 2 {
		t.Errorf("MUELimits() = %+v, AOCEdits() = %+v", mue, aoc)
	}
	c.Purge()
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, cache string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "cache" && lp.GetValue() == cache {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
