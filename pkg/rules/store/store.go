package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver ("pgx")
	_ "github.com/mattn/go-sqlite3"    // cgo SQLite driver ("sqlite3")
	_ "modernc.org/sqlite"             // pure Go SQLite driver ("sqlite")

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
)

// dialect captures the differences between the supported backends.
type dialect struct {
	// name is the configured driver name and the backend in StoreErrors.
	name string

	// driver is the database/sql driver name.
	driver string

	// numbered rewrites ? placeholders to $1, $2, ...
	numbered bool

	// sqlite enables file and pragma handling.
	sqlite bool
}

var dialects = map[string]dialect{
	"sqlite":   {name: "sqlite", driver: "sqlite", sqlite: true},
	"sqlite3":  {name: "sqlite3", driver: "sqlite3", sqlite: true},
	"postgres": {name: "postgres", driver: "pgx", numbered: true},
}

// rebind rewrites a query written with ? placeholders for the dialect.
func (d dialect) rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// dsn returns the connection string with busy timeout and journal mode
// applied for SQLite drivers. Each driver spells its pragmas differently.
func (d dialect) dsn(cfg config.StoreConfig) string {
	if !d.sqlite {
		return cfg.DSN
	}

	busy := cfg.BusyTimeout.Milliseconds()
	var params []string
	switch d.driver {
	case "sqlite":
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busy))
		if cfg.WALMode {
			params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
		}
	case "sqlite3":
		params = append(params, fmt.Sprintf("_busy_timeout=%d", busy))
		if cfg.WALMode {
			params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
		}
	}

	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}
	return cfg.DSN + sep + strings.Join(params, "&")
}

// Store is the persisted rule snapshot. It is safe for concurrent use.
type Store struct {
	db        *sql.DB
	dialect   dialect
	batchSize int
	logger    *slog.Logger

	// generation is bumped after every committed ReplaceSnapshot so caches
	// keyed on it never serve rows from a replaced table.
	generation atomic.Uint64

	closeOnce sync.Once
}

// Open connects to the configured backend and creates the schema if needed.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q (expected sqlite, sqlite3 or postgres)", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store dsn cannot be empty")
	}

	if d.sqlite && !strings.HasPrefix(cfg.DSN, "file:") && !strings.Contains(cfg.DSN, ":memory:") {
		if dir := filepath.Dir(cfg.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, edits.NewStoreError(d.name, "open", err)
			}
		}
	}

	db, err := sql.Open(d.driver, d.dsn(cfg))
	if err != nil {
		return nil, edits.NewStoreError(d.name, "open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	s := newStore(db, d, cfg.InsertBatchSize)
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("rule store opened",
		"driver", d.name,
		"wal_mode", d.sqlite && cfg.WALMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func newStore(db *sql.DB, d dialect, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = config.DefaultStoreInsertBatchSize
	}
	return &Store{
		db:        db,
		dialect:   d,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "rules.store", "driver", d.name),
	}
}

// initialize creates the schema and verifies its version.
func (s *Store) initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return edits.NewStoreError(s.dialect.name, "ping", err)
	}

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return edits.NewStoreError(s.dialect.name, "create_schema", err)
		}
	}
	s.logger.Debug("schema ensured")

	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(insertSchemaVersion), SchemaVersion); err != nil {
		return edits.NewStoreError(s.dialect.name, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, getSchemaVersion).Scan(&version); err != nil {
		return edits.NewStoreError(s.dialect.name, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return edits.NewStoreError(s.dialect.name, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Generation identifies the current snapshot within this process.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.readError("ping", err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
		s.logger.Debug("rule store closed")
	})
	return err
}

// readError marks a failed read as the store being unavailable.
func (s *Store) readError(op string, err error) error {
	return edits.NewStoreError(s.dialect.name, op, fmt.Errorf("%w: %w", edits.ErrRuleStoreUnavailable, err))
}

// timeLayout is fixed width so stored timestamps sort lexically in time
// order. RFC3339Nano trims trailing zeros and does not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. The empty string is the zero time.
// Older rows written with RFC3339Nano also parse.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
