package rowstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Compile-time interface check.
var _ types.Catalog = (*Catalog)(nil)

// Catalog implements types.Catalog over the tables of a Config.
type Catalog struct {
	mu       sync.RWMutex
	attached bool
	opts     options
	names    []string
	tables   map[string]types.Table
}

// NewCatalog creates a catalog. It is not attached; call Attach with a Config
// to open its tables.
func NewCatalog(opts ...Option) *Catalog {
	return &Catalog{
		opts:   newOptions(opts),
		tables: make(map[string]types.Table),
	}
}

// GetTable returns the attached table with the given name.
func (c *Catalog) GetTable(name string) (types.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.attached {
		return nil, types.ErrCatalogDetached
	}
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return t, nil
}

// TableNames returns the attached table names in config order.
func (c *Catalog) TableNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.names...)
}

// Attach opens every table in config. If any table fails to open, the
// tables already opened are closed and the catalog stays detached.
func (c *Catalog) Attach(config types.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	tables := make(map[string]types.Table, len(config.Tables))
	names := make([]string, 0, len(config.Tables))
	for _, tc := range config.Tables {
		t, err := open(tc, c.opts)
		if err != nil {
			for _, opened := range tables {
				opened.Close()
			}
			return err
		}
		tables[tc.Name] = t
		names = append(names, tc.Name)
		c.opts.logger.Debug("attached table", "table", tc.Name, "backend", tc.Backend)
	}

	c.tables = tables
	c.names = names
	c.attached = true
	return nil
}

// Detach closes every table. Memory tables with the on_close strategy save
// here and relational tables discard uncommitted work. Detach is
// idempotent.
func (c *Catalog) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.attached {
		return nil
	}
	var errs []error
	for _, name := range c.names {
		if err := c.tables[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", name, err))
		}
	}
	c.attached = false
	c.tables = make(map[string]types.Table)
	c.names = nil
	return errors.Join(errs...)
}
