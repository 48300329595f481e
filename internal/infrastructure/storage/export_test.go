package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsRelay/internal/domain"
)

// get loads the record for url.
func (r *SQLiteRepository) get(ctx context.Context, url string) (domain.PostedRecord, error) {
	query, args, err := sq.Select("url", "title", "tag", "posted_at").
		From(postedTable).
		Where(sq.Eq{"url": url}).
		ToSql()
	if err != nil {
		return domain.PostedRecord{}, fmt.Errorf("build get query: %w", err)
	}

	var row dbPosted
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		return domain.PostedRecord{}, fmt.Errorf("get posted %s: %w", url, err)
	}
	return row.toDomain(), nil
}

type dbPosted struct {
	URL      string         `db:"url"`
	Title    sql.NullString `db:"title"`
	Tag      sql.NullString `db:"tag"`
	PostedAt sql.NullString `db:"posted_at"`
}

func (p dbPosted) toDomain() domain.PostedRecord {
	rec := domain.PostedRecord{
		URL:   p.URL,
		Title: p.Title.String,
		Tag:   p.Tag.String,
	}
	if t, err := time.Parse(time.RFC3339, p.PostedAt.String); err == nil {
		rec.PostedAt = t
	}
	return rec
}
