// This file is the connection provider: it turns a ConnectInfo into an open
// *sql.DB backed by the modernc.org/sqlite driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// sqliteEncodings maps charset names used by server databases onto the
// values SQLite's encoding pragma accepts.
var sqliteEncodings = map[string]string{
	"utf8":    "UTF-8",
	"utf8mb4": "UTF-8",
	"utf-8":   "UTF-8",
	"utf16":   "UTF-16",
	"utf-16":  "UTF-16",
	"utf16le": "UTF-16le",
	"utf16be": "UTF-16be",
}

// DSN returns the data source name for info. Database is the database file
// path. Host, User and Password have no meaning for an embedded database and
// are ignored.
func DSN(info types.ConnectInfo) (string, error) {
	if info.Database == "" {
		return "", types.ErrDatabaseMissing
	}
	driver := info.Driver
	if driver != "" && driver != DriverName {
		return "", fmt.Errorf("%w: driver %q", types.ErrBackendUnknown, driver)
	}

	q := url.Values{}
	if info.Charset != "" {
		enc, ok := sqliteEncodings[strings.ToLower(info.Charset)]
		if !ok {
			return "", fmt.Errorf("unsupported charset %q", info.Charset)
		}
		q.Add("_pragma", fmt.Sprintf("encoding(%q)", enc))
	}
	if len(q) == 0 {
		return info.Database, nil
	}
	return info.Database + "?" + q.Encode(), nil
}

// Connect opens a connection for info, creating the database directory when
// it does not exist, and verifies it with a ping.
func Connect(info types.ConnectInfo) (*sql.DB, error) {
	dsn, err := DSN(info)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(info.Database); dir != "" && dir != "." && info.Database != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", info.Database, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", info.Database, err)
	}
	return db, nil
}
