// Package rowstore is the public entry point to the row store. Open builds a
// single table for a TableConfig, choosing the backend it names; Catalog
// attaches every table of a Config at once.
//
// Example:
//
//	tbl, err := rowstore.Open(types.TableConfig{
//	    Name:       "people",
//	    Backend:    types.BackendMemory,
//	    KeyColumns: []string{"playerID"},
//	    Connect:    types.ConnectInfo{Directory: "data", FileName: "People.csv"},
//	})
//	defer tbl.Close()
package rowstore

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mesh-intelligence/rowstore/internal/memory"
	"github.com/mesh-intelligence/rowstore/internal/sqlite"
	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Version is the release of the rowstore module.
const Version = "0.3.0"

// Option configures Open and NewCatalog.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	dataDir string
}

// WithLogger sets the logger handed to every table.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDataDir resolves relative row source directories and database paths
// against dir.
func WithDataDir(dir string) Option {
	return func(o *options) { o.dataDir = dir }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Open validates cfg and returns the table it describes. Memory tables load
// their row source; relational tables connect to their database.
func Open(cfg types.TableConfig, opts ...Option) (types.Table, error) {
	return open(cfg, newOptions(opts))
}

func open(cfg types.TableConfig, o options) (types.Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = resolvePaths(cfg, o.dataDir)

	switch cfg.Backend {
	case types.BackendMemory:
		t, err := memory.NewTable(cfg, memory.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("opening table %s: %w", cfg.Name, err)
		}
		return t, nil
	case types.BackendSQLite:
		t, err := sqlite.Open(cfg, sqlite.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("opening table %s: %w", cfg.Name, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
}

// resolvePaths joins relative locations in cfg onto dataDir.
func resolvePaths(cfg types.TableConfig, dataDir string) types.TableConfig {
	if dataDir == "" {
		return cfg
	}
	c := &cfg.Connect
	switch cfg.Backend {
	case types.BackendMemory:
		if !filepath.IsAbs(c.Directory) {
			c.Directory = filepath.Join(dataDir, c.Directory)
		}
	case types.BackendSQLite:
		if c.Database != "" && c.Database != ":memory:" && !filepath.IsAbs(c.Database) {
			c.Database = filepath.Join(dataDir, c.Database)
		}
	}
	return cfg
}

// Flush makes a table's changes durable: memory tables are saved to their
// row source and relational tables commit pending work. Other tables are
// left alone.
func Flush(t types.Table) error {
	switch v := t.(type) {
	case types.Saver:
		return v.Save()
	case types.Committer:
		return v.Commit()
	}
	return nil
}

// Copy inserts every row of src into dst and returns how many were added.
// Destinations implementing types.Loader take the rows as one all-or-nothing
// batch; others receive one Insert per row and stop at the first error.
func Copy(dst, src types.Table) (int, error) {
	rows, err := src.Rows()
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", src.Name(), err)
	}
	if l, ok := dst.(types.Loader); ok {
		return l.Load(rows)
	}
	for i, r := range rows {
		if err := dst.Insert(r); err != nil {
			return i, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return len(rows), nil
}
