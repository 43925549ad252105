// Package memory implements the in-process row-store backend: an ordered
// collection of rows materialized from a flat file and flushed back to it.
// Every operation is a linear scan over the collection.
package memory

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Compile-time interface checks.
var (
	_ types.Table  = (*Table)(nil)
	_ types.Loader = (*Table)(nil)
	_ types.Saver  = (*Table)(nil)
)

// Table holds its rows in insertion order. It is not safe for concurrent
// use.
type Table struct {
	name       string
	keyColumns []string
	sync       string
	columns    []string // header order used by Save
	rows       []types.Row
	source     RowSource
	logger     *slog.Logger
}

// Option configures a Table at construction.
type Option func(*options)

type options struct {
	rows     []types.Row
	injected bool
	source   RowSource
	logger   *slog.Logger
}

// WithRows seeds the table with rows instead of loading its row source.
// The rows are copied.
func WithRows(rows []types.Row) Option {
	return func(o *options) {
		o.rows = rows
		o.injected = true
	}
}

// WithSource overrides the row source derived from the config.
func WithSource(src RowSource) Option {
	return func(o *options) { o.source = src }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewTable creates a memory table. Unless WithRows is given, rows are loaded
// from the row source described by cfg.Connect; a missing file is an error.
func NewTable(cfg types.TableConfig, opts ...Option) (*Table, error) {
	if cfg.Backend == "" {
		cfg.Backend = types.BackendMemory
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
		sync:       cfg.GetSyncStrategy(),
		source:     o.source,
		logger:     o.logger.With("table", cfg.Name, "backend", types.BackendMemory),
	}

	if t.source == nil && cfg.Connect.FileName != "" {
		src, err := NewSource(cfg.Connect)
		if err != nil {
			return nil, err
		}
		t.source = src
	}

	if o.injected {
		t.rows = make([]types.Row, 0, len(o.rows))
		for _, r := range o.rows {
			t.rows = append(t.rows, r.Clone())
		}
		t.columns = unionColumns(nil, t.rows)
		t.logger.Debug("table seeded", "rows", len(t.rows))
		return t, nil
	}

	if t.source == nil {
		return nil, types.ErrSourceMissing
	}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) load() error {
	cols, rows, err := t.source.Load()
	if err != nil {
		return fmt.Errorf("loading table %s: %w", t.name, err)
	}
	t.columns = cols
	t.rows = rows
	t.logger.Debug("table loaded", "path", t.source.Path(), "rows", len(rows))
	return nil
}

// Name returns the logical table name.
func (t *Table) Name() string { return t.name }

// KeyColumns returns a copy of the primary key columns.
func (t *Table) KeyColumns() []string { return append([]string(nil), t.keyColumns...) }

// Columns returns the columns Save writes, in order.
func (t *Table) Columns() []string { return unionColumns(t.columns, t.rows) }

// Len returns the current number of rows.
func (t *Table) Len() int { return len(t.rows) }

// FindByPrimaryKey zips the key columns with keyValues and delegates to
// FindByTemplate.
func (t *Table) FindByPrimaryKey(keyValues []any, fields ...string) ([]types.Row, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return nil, err
	}
	return t.FindByTemplate(tmpl, &types.FindOptions{Fields: fields})
}

// FindByTemplate scans every row and returns copies of the matches, ordered,
// paged and projected as opts asks.
func (t *Table) FindByTemplate(tmpl types.Template, opts *types.FindOptions) ([]types.Row, error) {
	if opts == nil {
		opts = &types.FindOptions{}
	}

	var matches []types.Row
	for _, row := range t.rows {
		if types.Matches(row, tmpl) {
			matches = append(matches, row)
		}
	}

	if len(opts.OrderBy) > 0 {
		sortRows(matches, opts.OrderBy)
	}
	matches = page(matches, opts.Offset, opts.Limit)

	out := make([]types.Row, 0, len(matches))
	for _, row := range matches {
		if len(opts.Fields) == 0 {
			out = append(out, row.Clone())
			continue
		}
		p, err := row.Project(opts.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DeleteByPrimaryKey removes the row with the given key.
func (t *Table) DeleteByPrimaryKey(keyValues []any) (int, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return 0, err
	}
	return t.DeleteByTemplate(tmpl)
}

// DeleteByTemplate rebuilds the collection without the matching rows,
// keeping survivors in order. An empty template removes every row.
func (t *Table) DeleteByTemplate(tmpl types.Template) (int, error) {
	if len(tmpl) == 0 {
		t.logger.Warn("deleting every row", "rows", len(t.rows))
	}

	kept := make([]types.Row, 0, len(t.rows))
	deleted := 0
	for _, row := range t.rows {
		if types.Matches(row, tmpl) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	if deleted == 0 {
		return 0, nil
	}
	if err := t.apply(kept); err != nil {
		return 0, err
	}
	return deleted, nil
}

// UpdateByPrimaryKey sets newValues on the row with the given key.
func (t *Table) UpdateByPrimaryKey(keyValues []any, newValues types.Row) (int, error) {
	tmpl, err := types.KeyTemplate(t.keyColumns, keyValues)
	if err != nil {
		return 0, err
	}
	return t.UpdateByTemplate(tmpl, newValues)
}

// UpdateByTemplate builds updated copies of the matching rows, checks that
// they keep every primary key unique, then swaps them in.
func (t *Table) UpdateByTemplate(tmpl types.Template, newValues types.Row) (int, error) {
	var matched []int
	for i, row := range t.rows {
		if types.Matches(row, tmpl) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 || len(newValues) == 0 {
		return len(matched), nil
	}

	next := append([]types.Row(nil), t.rows...)
	for _, i := range matched {
		updated := next[i].Clone()
		for k, v := range newValues {
			updated[k] = v
		}
		next[i] = updated
	}

	if types.TouchesKey(t.keyColumns, newValues) {
		if err := t.checkUpdateKeys(next, matched); err != nil {
			return 0, err
		}
	}
	if err := t.apply(next); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// checkUpdateKeys rejects an update that would move a row onto a primary key
// another row holds. Rows without a complete key take no part in the check,
// and duplicates already present among rows whose key did not change are
// left alone.
func (t *Table) checkUpdateKeys(next []types.Row, matched []int) error {
	moved := make(map[int]bool, len(matched))
	for _, i := range matched {
		before, _ := t.keyString(t.rows[i])
		after, _ := t.keyString(next[i])
		if before != after {
			moved[i] = true
		}
	}

	seen := make(map[string]bool, len(next))
	for i, row := range next {
		if moved[i] {
			continue
		}
		if key, ok := t.keyString(row); ok {
			seen[key] = true
		}
	}
	for _, i := range matched {
		if !moved[i] {
			continue
		}
		key, ok := t.keyString(next[i])
		if !ok {
			continue
		}
		if seen[key] {
			return fmt.Errorf("%w: update of %s would duplicate key %s", types.ErrDuplicateKey, t.name, key)
		}
		seen[key] = true
	}
	return nil
}

// Insert appends a copy of record after checking that it carries a complete,
// unused primary key.
func (t *Table) Insert(record types.Row) error {
	if missing := types.MissingKeyColumns(t.keyColumns, record); len(missing) > 0 {
		return fmt.Errorf("%w: %s", types.ErrMissingPrimaryKey, strings.Join(missing, ", "))
	}

	if len(t.keyColumns) > 0 {
		key, _ := types.KeyOf(t.keyColumns, record)
		for _, row := range t.rows {
			if types.Matches(row, key) {
				k, _ := t.keyString(record)
				return fmt.Errorf("%w: %s already has key %s", types.ErrDuplicateKey, t.name, k)
			}
		}
	}

	next := append(t.rows[:len(t.rows):len(t.rows)], record.Clone())
	return t.apply(next)
}

// Load appends rows as one mutation. Every row is checked against the
// table and the rest of the batch before any is added.
func (t *Table) Load(rows []types.Row) (int, error) {
	if len(t.keyColumns) > 0 {
		seen := make(map[string]bool, len(t.rows)+len(rows))
		for _, r := range t.rows {
			if k, ok := t.keyString(r); ok {
				seen[k] = true
			}
		}
		for i, r := range rows {
			if missing := types.MissingKeyColumns(t.keyColumns, r); len(missing) > 0 {
				return 0, fmt.Errorf("row %d: %w: %s", i+1, types.ErrMissingPrimaryKey, strings.Join(missing, ", "))
			}
			k, _ := t.keyString(r)
			if seen[k] {
				return 0, fmt.Errorf("row %d: %w: %s already has key %s", i+1, types.ErrDuplicateKey, t.name, k)
			}
			seen[k] = true
		}
	}

	next := make([]types.Row, len(t.rows), len(t.rows)+len(rows))
	copy(next, t.rows)
	for _, r := range rows {
		next = append(next, r.Clone())
	}
	if err := t.apply(next); err != nil {
		return 0, err
	}
	t.logger.Debug("rows loaded", "rows", len(rows))
	return len(rows), nil
}

// Rows returns copies of every row in insertion order.
func (t *Table) Rows() ([]types.Row, error) {
	out := make([]types.Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Clone()
	}
	return out, nil
}

// Save rewrites the row source with the header and every row. A table with
// no rows leaves the source untouched.
func (t *Table) Save() error {
	if len(t.rows) == 0 {
		t.logger.Debug("save skipped, table is empty")
		return nil
	}
	if t.source == nil {
		return fmt.Errorf("saving table %s: %w", t.name, types.ErrSourceMissing)
	}
	cols := t.Columns()
	if err := t.source.Store(cols, t.rows); err != nil {
		return fmt.Errorf("saving table %s: %w", t.name, err)
	}
	t.logger.Debug("table saved", "path", t.source.Path(), "rows", len(t.rows))
	return nil
}

// Close saves when the sync strategy is on_close. The row source holds no
// open handle between calls, so there is nothing else to release.
func (t *Table) Close() error {
	if t.sync == types.SyncOnClose && t.source != nil {
		return t.Save()
	}
	return nil
}

// apply installs next as the table's rows. When the immediate save fails the
// previous rows are restored, so a failed operation leaves no trace.
func (t *Table) apply(next []types.Row) error {
	prev := t.rows
	t.rows = next
	if err := t.afterMutation(); err != nil {
		t.rows = prev
		return err
	}
	return nil
}

func (t *Table) afterMutation() error {
	if t.sync == types.SyncImmediate && t.source != nil {
		return t.Save()
	}
	return nil
}

// keyString renders the primary key of row for set membership. Values keep
// their dynamic type so "1" and 1 stay distinct, as they do in Matches.
func (t *Table) keyString(row types.Row) (string, bool) {
	if len(t.keyColumns) == 0 {
		return "", false
	}
	key, ok := types.KeyOf(t.keyColumns, row)
	if !ok {
		return "", false
	}
	parts := make([]string, len(t.keyColumns))
	for i, col := range t.keyColumns {
		v := key[col]
		if b, isBytes := v.([]byte); isBytes {
			v = string(b)
		}
		parts[i] = fmt.Sprintf("%s=%T(%v)", col, v, v)
	}
	return strings.Join(parts, ","), true
}

// sortRows orders rows by the given columns. A leading "-" reverses a column.
// Absent values sort first.
func sortRows(rows []types.Row, orderBy []string) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, term := range orderBy {
			col, desc := strings.CutPrefix(term, "-")
			c := compareValues(rows[i][col], rows[j][col])
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(formatValue(a), formatValue(b))
}

func page(rows []types.Row, offset, limit int) []types.Row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
