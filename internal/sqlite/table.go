// Package sqlite implements the relational row-store backend. Each table
// operation becomes one or more parameter-bound statements executed through
// database/sql against a SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Compile-time interface checks.
var (
	_ types.Table     = (*Table)(nil)
	_ types.Committer = (*Table)(nil)
	_ types.Loader    = (*Table)(nil)
)

// querier is the statement surface shared by *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Table forwards table operations to a relation in a SQLite database.
//
// In commit mode every mutation runs in its own transaction and is
// committed before returning. Otherwise mutations join a pending transaction
// that stays open until Commit, Rollback or Close; reads use the same
// transaction so they observe pending changes. Either way a failed mutation
// leaves no partial effect.
type Table struct {
	name       string
	keyColumns []string
	columns    []string
	known      map[string]bool
	commit     bool

	db     *sql.DB
	ownsDB bool
	tx     *sql.Tx
	logger *slog.Logger
}

// Option configures a Table at construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Open connects using cfg.Connect and returns a table that owns the
// connection; Close releases it.
func Open(cfg types.TableConfig, opts ...Option) (*Table, error) {
	if cfg.Backend == "" {
		cfg.Backend = types.BackendSQLite
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := Connect(cfg.Connect)
	if err != nil {
		return nil, err
	}
	t, err := NewTable(db, cfg, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	t.ownsDB = true
	return t, nil
}

// NewTable returns a table over an existing connection. The caller keeps
// ownership of db. When cfg.Columns is set the relation is created if it
// does not exist.
func NewTable(db *sql.DB, cfg types.TableConfig, opts ...Option) (*Table, error) {
	if cfg.Backend == "" {
		cfg.Backend = types.BackendSQLite
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	t := &Table{
		name:       cfg.Name,
		keyColumns: append([]string(nil), cfg.KeyColumns...),
		commit:     cfg.Commit,
		db:         db,
		logger:     o.logger.With("table", cfg.Name, "backend", types.BackendSQLite),
	}

	if len(cfg.Columns) > 0 {
		stmt := createTableStatement(t.name, cfg.Columns, t.keyColumns)
		t.logger.Debug("ensuring relation", "sql", stmt)
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("creating table %s: %w", t.name, err)
		}
	}
	if err := t.loadColumns(); err != nil {
		return nil, err
	}
	return t, nil
}

// loadColumns learns the relation's columns from an empty result set.
func (t *Table) loadColumns() error {
	rows, err := t.db.Query("SELECT * FROM " + quoteIdent(t.name) + " LIMIT 0")
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", t.name, err)
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("reading columns of %s: %w", t.name, err)
	}
	t.columns = cols
	t.known = make(map[string]bool, len(cols))
	for _, c := range cols {
		t.known[c] = true
	}
	return rows.Err()
}

// Name returns the logical table name.
func (t *Table) Name() string { return t.name }

// KeyColumns returns a copy of the primary key columns.
func (t *Table) KeyColumns() []string { return append([]string(nil), t.keyColumns...) }

// Columns returns the relation's columns in declared order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Pending reports whether uncommitted mutations are held open.
func (t *Table) Pending() bool { return t.tx != nil }

// q returns the pending transaction when there is one, the pool otherwise.
func (t *Table) q() querier {
	if t.tx != nil {
		return t.tx
	}
	return t.db
}

// knownTemplate reports whether every template column exists in the
// relation. A template naming an unknown column matches no row, as a
// missing field never matches in the memory backend.
func (t *Table) knownTemplate(tmpl types.Template) bool {
	for c := range tmpl {
		if !t.known[c] {
			return false
		}
	}
	return true
}

// FindByPrimaryKey zips the key columns with keyValues and delegates to
// FindByTemplate.
func (t *Table) FindByPrimaryKey(keyValues []any, fields ...string) ([]types.Row, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return nil, err
	}
	return t.FindByTemplate(tmpl, &types.FindOptions{Fields: fields})
}

// FindByTemplate selects the matching rows and materializes them. The
// projection is applied to the fetched rows so a missing field fails with
// ErrInvalidField exactly as in the memory backend.
func (t *Table) FindByTemplate(tmpl types.Template, opts *types.FindOptions) ([]types.Row, error) {
	if opts == nil {
		opts = &types.FindOptions{}
	}
	if !t.knownTemplate(tmpl) {
		return []types.Row{}, nil
	}

	query, args := selectStatement(t.name, tmpl, opts, t.known)
	t.logger.Debug("select", "sql", query)
	rows, err := t.q().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.name, err)
	}
	defer rows.Close()

	found, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", t.name, err)
	}
	if len(opts.Fields) == 0 {
		return found, nil
	}
	out := make([]types.Row, 0, len(found))
	for _, row := range found {
		p, err := row.Project(opts.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// scanRows reads every row into a types.Row keyed by result column name.
func scanRows(rows *sql.Rows) ([]types.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []types.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteByPrimaryKey removes the row with the given key.
func (t *Table) DeleteByPrimaryKey(keyValues []any) (int, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return 0, err
	}
	return t.DeleteByTemplate(tmpl)
}

// DeleteByTemplate removes the matching rows. An empty template deletes
// every row of the relation.
func (t *Table) DeleteByTemplate(tmpl types.Template) (int, error) {
	if !t.knownTemplate(tmpl) {
		return 0, nil
	}
	if len(tmpl) == 0 {
		t.logger.Warn("deleting every row")
	}
	query, args := deleteStatement(t.name, tmpl)
	return t.mutate("delete", func(q querier) (int, error) {
		t.logger.Debug("delete", "sql", query)
		res, err := q.Exec(query, args...)
		if err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", t.name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting deleted rows: %w", err)
		}
		return int(n), nil
	})
}

// UpdateByPrimaryKey sets newValues on the row with the given key.
func (t *Table) UpdateByPrimaryKey(keyValues []any, newValues types.Row) (int, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return 0, err
	}
	return t.UpdateByTemplate(tmpl, newValues)
}

// UpdateByTemplate counts the matching rows, applies newValues to them and,
// when a key column changed, fails if any primary key is now shared by more
// rows than before. Duplicates the relation already held are tolerated.
func (t *Table) UpdateByTemplate(tmpl types.Template, newValues types.Row) (int, error) {
	if !t.knownTemplate(tmpl) {
		return 0, nil
	}
	countSQL, countArgs := countStatement(t.name, tmpl)

	return t.mutate("update", func(q querier) (int, error) {
		var matched int
		if err := q.QueryRow(countSQL, countArgs...).Scan(&matched); err != nil {
			return 0, fmt.Errorf("counting matches in %s: %w", t.name, err)
		}
		if matched == 0 || len(newValues) == 0 {
			return matched, nil
		}

		checkKeys := len(t.keyColumns) > 0 && types.TouchesKey(t.keyColumns, newValues)
		var before map[string]int64
		if checkKeys {
			var err error
			if before, err = t.duplicateKeys(q); err != nil {
				return 0, err
			}
		}

		query, args := updateStatement(t.name, tmpl, newValues)
		t.logger.Debug("update", "sql", query)
		if _, err := q.Exec(query, args...); err != nil {
			if isKeyViolation(err) {
				return 0, fmt.Errorf("%w: update of %s: %v", types.ErrDuplicateKey, t.name, err)
			}
			return 0, fmt.Errorf("updating %s: %w", t.name, err)
		}

		if checkKeys {
			after, err := t.duplicateKeys(q)
			if err != nil {
				return 0, err
			}
			for key, n := range after {
				if n > before[key] {
					return 0, fmt.Errorf("%w: update of %s would duplicate key %s", types.ErrDuplicateKey, t.name, key)
				}
			}
		}
		return matched, nil
	})
}

// duplicateKeys maps every primary key shared by more than one row to the
// number of rows sharing it. Relations declared without a PRIMARY KEY
// constraint rely on this to keep keys unique.
func (t *Table) duplicateKeys(q querier) (map[string]int64, error) {
	rows, err := q.Query(duplicateKeyProbe(t.name, t.keyColumns))
	if err != nil {
		return nil, fmt.Errorf("checking keys of %s: %w", t.name, err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	n := len(t.keyColumns)
	for rows.Next() {
		vals := make([]any, n)
		ptrs := make([]any, n+1)
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		var count int64
		ptrs[n] = &count
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("checking keys of %s: %w", t.name, err)
		}
		parts := make([]string, n)
		for i, col := range t.keyColumns {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			parts[i] = fmt.Sprintf("%s=%T(%v)", col, v, v)
		}
		out[strings.Join(parts, ",")] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("checking keys of %s: %w", t.name, err)
	}
	return out, nil
}

// Insert adds record after checking that its primary key is complete and
// unused.
func (t *Table) Insert(record types.Row) error {
	_, err := t.mutate("insert", func(q querier) (int, error) {
		return 1, t.insertRow(q, record)
	})
	return err
}

// Load inserts rows as one mutation: either every row is added or, on the
// first missing or duplicate key, none is.
func (t *Table) Load(rows []types.Row) (int, error) {
	return t.mutate("load", func(q querier) (int, error) {
		for i, r := range rows {
			if err := t.insertRow(q, r); err != nil {
				return 0, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		t.logger.Debug("rows loaded", "rows", len(rows))
		return len(rows), nil
	})
}

func (t *Table) insertRow(q querier, record types.Row) error {
	if missing := types.MissingKeyColumns(t.keyColumns, record); len(missing) > 0 {
		return fmt.Errorf("%w: %s", types.ErrMissingPrimaryKey, strings.Join(missing, ", "))
	}
	if len(t.keyColumns) > 0 {
		key, _ := types.KeyOf(t.keyColumns, record)
		if t.knownTemplate(key) {
			countSQL, countArgs := countStatement(t.name, key)
			var n int
			if err := q.QueryRow(countSQL, countArgs...).Scan(&n); err != nil {
				return fmt.Errorf("checking key in %s: %w", t.name, err)
			}
			if n > 0 {
				return fmt.Errorf("%w: %s already has key %v", types.ErrDuplicateKey, t.name, map[string]any(key))
			}
		}
	}

	query, args := insertStatement(t.name, record)
	t.logger.Debug("insert", "sql", query)
	if _, err := q.Exec(query, args...); err != nil {
		if isKeyViolation(err) {
			return fmt.Errorf("%w: insert into %s: %v", types.ErrDuplicateKey, t.name, err)
		}
		return fmt.Errorf("inserting into %s: %w", t.name, err)
	}
	return nil
}

// Rows returns every row in the order the database yields them.
func (t *Table) Rows() ([]types.Row, error) {
	return t.FindByTemplate(nil, nil)
}

// mutate runs fn atomically. In commit mode fn gets its own transaction.
// Otherwise fn runs under a savepoint of the pending transaction, opened
// on first use, and a failure rolls back to the savepoint.
func (t *Table) mutate(op string, fn func(q querier) (int, error)) (int, error) {
	if t.commit {
		tx, err := t.db.Begin()
		if err != nil {
			return 0, fmt.Errorf("beginning %s: %w", op, err)
		}
		defer tx.Rollback()
		n, err := fn(tx)
		if err != nil {
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("committing %s: %w", op, err)
		}
		return n, nil
	}

	if t.tx == nil {
		tx, err := t.db.Begin()
		if err != nil {
			return 0, fmt.Errorf("beginning transaction: %w", err)
		}
		t.tx = tx
	}

	sp := savepointName()
	if _, err := t.tx.Exec("SAVEPOINT " + sp); err != nil {
		return 0, fmt.Errorf("opening savepoint for %s: %w", op, err)
	}
	n, err := fn(t.tx)
	if err != nil {
		if _, rbErr := t.tx.Exec("ROLLBACK TO SAVEPOINT " + sp); rbErr != nil {
			return 0, errors.Join(err, fmt.Errorf("rolling back %s: %w", op, rbErr))
		}
		if _, relErr := t.tx.Exec("RELEASE SAVEPOINT " + sp); relErr != nil {
			return 0, errors.Join(err, fmt.Errorf("releasing savepoint: %w", relErr))
		}
		return 0, err
	}
	if _, err := t.tx.Exec("RELEASE SAVEPOINT " + sp); err != nil {
		return 0, fmt.Errorf("releasing savepoint for %s: %w", op, err)
	}
	return n, nil
}

// savepointName returns a unique identifier usable as a savepoint name.
func savepointName() string {
	return "sp_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Commit makes pending mutations durable. It is a no-op when nothing is
// pending.
func (t *Table) Commit() error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", t.name, err)
	}
	return nil
}

// Rollback discards pending mutations. It is a no-op when nothing is
// pending.
func (t *Table) Rollback() error {
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rolling back %s: %w", t.name, err)
	}
	return nil
}

// Close discards pending mutations and closes the connection when the table
// opened it.
func (t *Table) Close() error {
	var errs []error
	if t.tx != nil {
		t.logger.Warn("discarding uncommitted changes")
		errs = append(errs, t.Rollback())
	}
	if t.ownsDB && t.db != nil {
		errs = append(errs, t.db.Close())
		t.db = nil
	}
	return errors.Join(errs...)
}
