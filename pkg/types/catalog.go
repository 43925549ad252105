package types

import "errors"

// Catalog groups the tables named in a Config. Callers attach to a config,
// access tables by name, and detach when done.
type Catalog interface {
	// GetTable returns the Table for the given name.
	// Returns ErrTableNotFound if no attached table has that name.
	GetTable(name string) (Table, error)

	// TableNames returns the attached table names in config order.
	TableNames() []string

	// Attach opens every table described by config. Returns
	// ErrAlreadyAttached if called while already attached.
	Attach(config Config) error

	// Detach closes every table. Idempotent: multiple calls succeed.
	// After Detach, GetTable returns ErrCatalogDetached.
	Detach() error
}

// Catalog lifecycle errors.
var (
	ErrCatalogDetached = errors.New("catalog is detached")
	ErrAlreadyAttached = errors.New("catalog is already attached")
	ErrTableNotFound   = errors.New("table not found")
)
