// This file provides the row sources a memory table loads from and saves to.
// Writes use the temp-file, fsync, rename pattern so a failed save never
// corrupts data flushed earlier.
package memory

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// RowSource is the external medium a memory table is materialized from.
// Load returns the header columns and every row; Store replaces the whole
// content with columns and rows.
type RowSource interface {
	Load() (columns []string, rows []types.Row, err error)
	Store(columns []string, rows []types.Row) error
	Path() string
}

// NewSource returns the RowSource for connect. The format comes from
// connect.Format or, when empty, from the file extension.
func NewSource(connect types.ConnectInfo) (RowSource, error) {
	if connect.FileName == "" {
		return nil, types.ErrSourceMissing
	}
	path := filepath.Join(connect.Directory, connect.FileName)

	format := connect.Format
	if format == "" {
		format = formatFromExt(path)
	}
	switch format {
	case types.FormatCSV:
		return &CSVSource{path: path}, nil
	case types.FormatJSONL:
		return &JSONLSource{path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrFormatUnknown, format)
	}
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return types.FormatJSONL
	default:
		return types.FormatCSV
	}
}

// CSVSource reads and writes comma-separated files with a header row.
// All values load as strings.
type CSVSource struct {
	path string
}

// Path returns the file location.
func (s *CSVSource) Path() string { return s.path }

// Load reads the header and every record. Records shorter than the header
// leave the trailing columns absent; extra fields are ignored.
func (s *CSVSource) Load() ([]string, []types.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}
	header = stripBOM(header)

	var rows []types.Row
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		row := make(types.Row, len(header))
		for i, col := range header {
			if i >= len(rec) {
				break
			}
			row[col] = rec[i]
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// Store writes the header followed by every row. Absent and nil values
// are written as empty fields.
func (s *CSVSource) Store(columns []string, rows []types.Row) error {
	return writeAtomic(s.path, ".csv-*.tmp", func(w *bufio.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(columns); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		rec := make([]string, len(columns))
		for _, row := range rows {
			for i, col := range columns {
				rec[i] = formatValue(row[col])
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// JSONLSource reads and writes one JSON object per line.
type JSONLSource struct {
	path string
}

// Path returns the file location.
func (s *JSONLSource) Path() string { return s.path }

// Load reads every object. Empty and malformed lines are skipped. The
// column list is the union of keys in first-seen order, each record's keys
// taken in sorted order.
func (s *JSONLSource) Load() ([]string, []types.Row, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	var rows []types.Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		row := make(types.Row, len(obj))
		for k, v := range obj {
			row[k] = textValue(v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scanning %s: %w", s.path, err)
	}
	return unionColumns(nil, rows), rows, nil
}

// Store writes every row as a JSON object. Only the given columns are
// written; absent columns are omitted from the object.
func (s *JSONLSource) Store(columns []string, rows []types.Row) error {
	return writeAtomic(s.path, ".jsonl-*.tmp", func(w *bufio.Writer) error {
		for _, row := range rows {
			obj := make(map[string]any, len(columns))
			for _, col := range columns {
				if v, ok := row[col]; ok {
					obj[col] = v
				}
			}
			b, err := json.Marshal(obj)
			if err != nil {
				return fmt.Errorf("marshaling record: %w", err)
			}
			if _, err := w.Write(b); err != nil {
				return fmt.Errorf("writing record: %w", err)
			}
			if err := w.WriteByte('\n'); err != nil {
				return fmt.Errorf("writing newline: %w", err)
			}
		}
		return nil
	})
}

// writeAtomic writes path through a temp file in the same directory, then
// fsyncs and renames it into place.
func writeAtomic(path, pattern string, fill func(w *bufio.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		return fail(err)
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// textValue keeps decoded JSON scalars as text so rows from either file
// format compare the same way against string templates.
func textValue(v any) any {
	switch t := v.(type) {
	case nil, string:
		return t
	case json.Number:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func stripBOM(header []string) []string {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header
}

// unionColumns extends base with every column found in rows, preserving
// first-seen order. Columns new to a row are added in sorted order.
func unionColumns(base []string, rows []types.Row) []string {
	seen := make(map[string]bool, len(base))
	cols := make([]string, 0, len(base))
	for _, c := range base {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, row := range rows {
		for _, c := range row.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}
