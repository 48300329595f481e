package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"NewsRelay/internal/ports"
)

const postedTable = "posted"

const createPostedTable = `CREATE TABLE IF NOT EXISTS posted(
	url TEXT PRIMARY KEY,
	title TEXT,
	tag TEXT,
	posted_at TEXT
)`

// SQLiteRepository keeps posted (or deliberately skipped) article URLs in a local SQLite file.
type SQLiteRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.PostedStore = (*SQLiteRepository)(nil)

// Open connects to the SQLite file at path.
func Open(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return NewSQLiteRepository(db), nil
}

// NewSQLiteRepository wires an existing connection.
func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Close releases the underlying connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Init creates the posted table if it does not exist yet.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPostedTable); err != nil {
		return fmt.Errorf("create posted table: %w", err)
	}
	return nil
}

// Contains reports whether url was already recorded.
func (r *SQLiteRepository) Contains(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").From(postedTable).Where(sq.Eq{"url": url}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build contains query: %w", err)
	}

	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query posted %s: %w", url, err)
	}
	return true, nil
}

// Record inserts url once; recording an existing url is a no-op.
func (r *SQLiteRepository) Record(ctx context.Context, url, title, tag string) error {
	query, args, err := sq.Insert(postedTable).
		Columns("url", "title", "tag", "posted_at").
		Values(url, title, tag, r.now().UTC().Format(time.RFC3339)).
		Suffix("ON CONFLICT(url) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build record query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record posted %s: %w", url, err)
	}
	return nil
}

// Count returns the number of stored records.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(postedTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count posted: %w", err)
	}
	return n, nil
}
