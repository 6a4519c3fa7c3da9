package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

// QueryObserver is notified after every named query.
type QueryObserver interface {
	ObserveQuery(name string, elapsed time.Duration, err error)
}

// Queries runs the named SQL queries embedded in queries/*.sql, e.g.
// "get-form" or "insert-submission". Queries are written with ? placeholders
// and rebound for the target driver.
type Queries struct {
	dot      *dotsql.DotSql
	observer QueryObserver
}

func LoadQueries() (*Queries, error) {
	var combined strings.Builder

	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		combined.Write(content)
		combined.WriteString("\n")
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined.String())
	if err != nil {
		return nil, fmt.Errorf("parse queries: %w", err)
	}

	return &Queries{dot: dot}, nil
}

func (q *Queries) query(ext sqlx.ExtContext, name string) (string, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return "", fmt.Errorf("query not found: %s", name)
	}
	return ext.Rebind(query), nil
}

func (q *Queries) observe(name string, start time.Time, err error) {
	if q.observer != nil {
		q.observer.ObserveQuery(name, time.Since(start), err)
	}
}

func (q *Queries) Exec(ctx context.Context, ext sqlx.ExtContext, name string, args ...any) (res sql.Result, err error) {
	query, err := q.query(ext, name)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { q.observe(name, start, err) }(time.Now())
	return ext.ExecContext(ctx, query, args...)
}

// Get scans a single row into dest. It returns sql.ErrNoRows when the query
// yields nothing.
func (q *Queries) Get(ctx context.Context, ext sqlx.ExtContext, name string, dest any, args ...any) (err error) {
	query, err := q.query(ext, name)
	if err != nil {
		return err
	}
	defer func(start time.Time) { q.observe(name, start, err) }(time.Now())
	return sqlx.GetContext(ctx, ext, dest, query, args...)
}

func (q *Queries) Select(ctx context.Context, ext sqlx.ExtContext, name string, dest any, args ...any) (err error) {
	query, err := q.query(ext, name)
	if err != nil {
		return err
	}
	defer func(start time.Time) { q.observe(name, start, err) }(time.Now())
	return sqlx.SelectContext(ctx, ext, dest, query, args...)
}
