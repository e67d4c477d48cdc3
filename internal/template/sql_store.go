package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"
)

const table = "templates"

const createTable = `CREATE TABLE IF NOT EXISTS templates (
	id TEXT NOT NULL PRIMARY KEY,
	name TEXT NOT NULL,
	model TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	data BLOB NOT NULL
)`

var columns = []string{
	"id", "name", "model", "file_name", "mime_type", "size", "checksum", "created_at", "updated_at",
}

// SQLStore implements Store on SQLite through the ent SQL builders.
type SQLStore struct {
	drv     *entsql.Driver
	builder *entsql.DialectBuilder
	now     func() time.Time
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn and
// migrates the templates table.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := NewSQLStore(entsql.OpenDB(dialect.SQLite, db))
	if err := s.CreateTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore creates a SQLStore on an open driver.
func NewSQLStore(drv *entsql.Driver) *SQLStore {
	return &SQLStore{
		drv:     drv,
		builder: entsql.Dialect(drv.Dialect()),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.drv.Close()
}

// CreateTable creates the templates table if it does not exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	if err := s.drv.Exec(ctx, createTable, []any{}, nil); err != nil {
		return fmt.Errorf("creating %s table: %w", table, err)
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, t Template) (Template, error) {
	t, err := prepare(t, s.now())
	if err != nil {
		return Template{}, err
	}
	query, args := s.builder.Insert(table).
		Columns(append(append([]string(nil), columns...), "data")...).
		Values(t.ID, t.Name, t.Model, t.FileName, t.MimeType, t.Size, t.Checksum,
			t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(), t.Data).
		Query()
	if err := s.drv.Exec(ctx, query, args, nil); err != nil {
		if isConstraint(err) {
			return Template{}, errors.Join(ErrInvalid, fmt.Errorf("template %s already exists", t.ID))
		}
		return Template{}, fmt.Errorf("inserting template: %w", err)
	}
	return t, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Template, error) {
	query, args := s.builder.Select(append(append([]string(nil), columns...), "data")...).
		From(entsql.Table(table)).
		Where(entsql.EQ("id", id)).
		Query()
	ts, err := s.query(ctx, query, args, true)
	if err != nil {
		return Template{}, err
	}
	if len(ts) == 0 {
		return Template{}, ErrNotFound
	}
	return ts[0], nil
}

func (s *SQLStore) List(ctx context.Context, model string) ([]Template, error) {
	sel := s.builder.Select(columns...).
		From(entsql.Table(table)).
		OrderBy(entsql.Desc("updated_at"), entsql.Asc("id"))
	if model != "" {
		sel = sel.Where(entsql.EQ("model", model))
	}
	query, args := sel.Query()
	return s.query(ctx, query, args, false)
}

func (s *SQLStore) UpdateData(ctx context.Context, id string, data []byte) (Template, error) {
	if len(data) == 0 {
		return Template{}, errors.Join(ErrInvalid, errors.New("data is empty"))
	}
	query, args := s.builder.Update(table).
		Set("data", data).
		Set("size", int64(len(data))).
		Set("checksum", Checksum(data)).
		Set("updated_at", s.now().UnixNano()).
		Where(entsql.EQ("id", id)).
		Query()
	if err := s.execOne(ctx, query, args); err != nil {
		return Template{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Rename(ctx context.Context, id, name string) (Template, error) {
	name, err := validName(name)
	if err != nil {
		return Template{}, err
	}
	query, args := s.builder.Update(table).
		Set("name", name).
		Set("file_name", FileName(name)).
		Set("updated_at", s.now().UnixNano()).
		Where(entsql.EQ("id", id)).
		Query()
	if err := s.execOne(ctx, query, args); err != nil {
		return Template{}, err
	}
	return s.Get(ctx, id)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query, args := s.builder.Delete(table).Where(entsql.EQ("id", id)).Query()
	return s.execOne(ctx, query, args)
}

// execOne runs a statement that must touch exactly one row.
func (s *SQLStore) execOne(ctx context.Context, query string, args []any) error {
	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) query(ctx context.Context, query string, args []any, withData bool) ([]Template, error) {
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		var (
			t                Template
			created, updated int64
			dest             = []any{&t.ID, &t.Name, &t.Model, &t.FileName, &t.MimeType, &t.Size, &t.Checksum, &created, &updated}
		)
		if withData {
			dest = append(dest, &t.Data)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		t.CreatedAt = time.Unix(0, created).UTC()
		t.UpdatedAt = time.Unix(0, updated).UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading templates: %w", err)
	}
	return out, nil
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed")
}
