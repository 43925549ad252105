package types

import "errors"

// Config is the decoded form of config.yaml: the tables a Catalog attaches.
type Config struct {
	Tables []TableConfig `json:"tables" yaml:"tables" mapstructure:"tables"`
}

// TableConfig holds construction parameters for a single table.
type TableConfig struct {
	Name       string      `json:"name" yaml:"name" mapstructure:"name"`
	Backend    string      `json:"backend" yaml:"backend" mapstructure:"backend"`
	KeyColumns []string    `json:"key_columns" yaml:"key_columns" mapstructure:"key_columns"`
	Connect    ConnectInfo `json:"connect_info" yaml:"connect_info" mapstructure:"connect_info"`

	// Columns, when set on a relational table, creates the table with these
	// TEXT columns if it does not exist yet.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty" mapstructure:"columns"`

	// Commit makes relational tables commit after every mutation.
	Commit bool `json:"commit,omitempty" yaml:"commit,omitempty" mapstructure:"commit"`

	// Sync selects when memory tables write back to their row source.
	Sync string `json:"sync,omitempty" yaml:"sync,omitempty" mapstructure:"sync"`
}

// ConnectInfo locates a table's data. Memory tables use Directory, FileName
// and Format; relational tables use the remaining fields.
type ConnectInfo struct {
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty" mapstructure:"directory"`
	FileName  string `json:"file_name,omitempty" yaml:"file_name,omitempty" mapstructure:"file_name"`
	Format    string `json:"format,omitempty" yaml:"format,omitempty" mapstructure:"format"`

	Driver   string `json:"driver,omitempty" yaml:"driver,omitempty" mapstructure:"driver"`
	Host     string `json:"host,omitempty" yaml:"host,omitempty" mapstructure:"host"`
	User     string `json:"user,omitempty" yaml:"user,omitempty" mapstructure:"user"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" mapstructure:"password"`
	Database string `json:"database,omitempty" yaml:"database,omitempty" mapstructure:"database"`
	Charset  string `json:"charset,omitempty" yaml:"charset,omitempty" mapstructure:"charset"`
}

// Supported backend names.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Sync strategies for memory tables.
const (
	SyncManual    = "manual"
	SyncImmediate = "immediate"
	SyncOnClose   = "on_close"
)

// Row source formats for memory tables.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Config validation errors.
var (
	ErrTableNameEmpty      = errors.New("table name must not be empty")
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrSyncStrategyUnknown = errors.New("unknown sync strategy")
	ErrFormatUnknown       = errors.New("unknown row source format")
	ErrSourceMissing       = errors.New("row source file name must not be empty")
	ErrDatabaseMissing     = errors.New("database must not be empty")
	ErrDuplicateTableName  = errors.New("duplicate table name")
)

var knownBackends = map[string]bool{
	BackendMemory: true,
	BackendSQLite: true,
}

var knownSyncStrategies = map[string]bool{
	"":            true,
	SyncManual:    true,
	SyncImmediate: true,
	SyncOnClose:   true,
}

var knownFormats = map[string]bool{
	"":          true,
	FormatCSV:   true,
	FormatJSONL: true,
}

// GetSyncStrategy returns the effective sync strategy, manual when unset.
func (c TableConfig) GetSyncStrategy() string {
	if c.Sync == "" {
		return SyncManual
	}
	return c.Sync
}

// Validate checks that the TableConfig is well-formed. Whether the row source
// is required depends on how the table is constructed, so only the backend
// independent fields and enumerations are checked here.
func (c TableConfig) Validate() error {
	if c.Name == "" {
		return ErrTableNameEmpty
	}
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !knownSyncStrategies[c.Sync] {
		return ErrSyncStrategyUnknown
	}
	if !knownFormats[c.Connect.Format] {
		return ErrFormatUnknown
	}
	return nil
}

// Validate checks every table and rejects duplicate names.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Name] {
			return ErrDuplicateTableName
		}
		seen[t.Name] = true
	}
	return nil
}
