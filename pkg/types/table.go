package types

import "errors"

// FindOptions narrows a FindByTemplate result. The zero value returns every
// matching row with all of its fields.
type FindOptions struct {
	// Fields projects each returned row to these columns. Field order is the
	// order callers should present them in; Row itself is unordered.
	Fields []string

	// Limit caps the number of rows returned. Zero or negative means no cap.
	Limit int

	// Offset skips this many matching rows.
	Offset int

	// OrderBy sorts by these columns, ascending. A leading "-" sorts
	// descending.
	OrderBy []string
}

// Table is the row-store contract shared by the memory and relational
// backends. Operations are synchronous and not safe for concurrent use.
type Table interface {
	// Name returns the logical table name.
	Name() string

	// KeyColumns returns the primary key columns in declared order.
	KeyColumns() []string

	// FindByPrimaryKey returns the row identified by keyValues, projected to
	// fields when given. The result holds at most one row.
	// Returns ErrNoPrimaryKey or ErrInvalidKeyArity on a bad key.
	FindByPrimaryKey(keyValues []any, fields ...string) ([]Row, error)

	// FindByTemplate returns every row matching tmpl. A nil opts is the same
	// as the zero FindOptions. Projection onto a field missing from a
	// matched row returns ErrInvalidField.
	FindByTemplate(tmpl Template, opts *FindOptions) ([]Row, error)

	// DeleteByPrimaryKey removes the row identified by keyValues and returns
	// the number of rows removed.
	DeleteByPrimaryKey(keyValues []any) (int, error)

	// DeleteByTemplate removes every row matching tmpl and returns the
	// number removed. An empty template removes all rows.
	DeleteByTemplate(tmpl Template) (int, error)

	// UpdateByPrimaryKey sets newValues on the row identified by keyValues.
	// Returns the number of rows matched.
	UpdateByPrimaryKey(keyValues []any, newValues Row) (int, error)

	// UpdateByTemplate sets newValues on every row matching tmpl and returns
	// the number of rows matched. If the result would hold two rows with the
	// same primary key, nothing changes and ErrDuplicateKey is returned.
	UpdateByTemplate(tmpl Template, newValues Row) (int, error)

	// Insert adds record. Returns ErrMissingPrimaryKey when a key column is
	// absent and ErrDuplicateKey when the key already exists.
	Insert(record Row) error

	// Rows returns every row in backend-native order.
	Rows() ([]Row, error)

	// Close releases backend resources.
	Close() error
}

// Saver is implemented by tables whose rows live in process memory and are
// written back to their row source explicitly.
type Saver interface {
	Save() error
}

// Committer is implemented by tables that can hold mutations in a pending
// transaction.
type Committer interface {
	Commit() error
	Rollback() error
}

// Loader is implemented by tables that insert a batch of rows as a single
// all-or-nothing mutation.
type Loader interface {
	Load(rows []Row) (int, error)
}

// Table operation errors.
var (
	ErrNoPrimaryKey      = errors.New("no primary key defined")
	ErrInvalidKeyArity   = errors.New("invalid primary key arity")
	ErrInvalidField      = errors.New("invalid field")
	ErrMissingPrimaryKey = errors.New("missing primary key field")
	ErrDuplicateKey      = errors.New("duplicate primary key")
)
