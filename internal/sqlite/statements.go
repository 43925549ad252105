// This file builds the SQL the relational table sends. Identifiers are
// quoted and every value travels as a bound parameter.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// quoteIdent quotes an identifier for SQLite, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// joinColumns quotes cols and joins them with commas.
func joinColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// whereClause renders tmpl as " WHERE a = ? AND b IS ?" with its arguments.
// Columns are sorted so equal templates produce equal statements. A nil
// value compares with IS so that NULL matches NULL, as in the memory
// backend. An empty template yields no clause.
func whereClause(tmpl types.Template) (string, []any) {
	if len(tmpl) == 0 {
		return "", nil
	}
	cols := tmpl.Columns()
	conds := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		v := tmpl[c]
		if v == nil {
			conds[i] = quoteIdent(c) + " IS ?"
		} else {
			conds[i] = quoteIdent(c) + " = ?"
		}
		args[i] = v
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// selectStatement builds the SELECT for FindByTemplate. Ordering columns the
// table does not have are dropped.
func selectStatement(table string, tmpl types.Template, opts *types.FindOptions, known map[string]bool) (string, []any) {
	where, args := whereClause(tmpl)
	query := "SELECT * FROM " + quoteIdent(table) + where

	var order []string
	for _, term := range opts.OrderBy {
		col, desc := strings.CutPrefix(term, "-")
		if !known[col] {
			continue
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		order = append(order, quoteIdent(col)+" "+dir)
	}
	if len(order) > 0 {
		query += " ORDER BY " + strings.Join(order, ", ")
	}

	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return query, args
}

func countStatement(table string, tmpl types.Template) (string, []any) {
	where, args := whereClause(tmpl)
	return "SELECT COUNT(*) FROM " + quoteIdent(table) + where, args
}

func deleteStatement(table string, tmpl types.Template) (string, []any) {
	where, args := whereClause(tmpl)
	return "DELETE FROM " + quoteIdent(table) + where, args
}

// updateStatement sets every column of values on the rows matching tmpl.
// values must not be empty.
func updateStatement(table string, tmpl types.Template, values types.Row) (string, []any) {
	cols := values.Columns()
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(tmpl))
	for i, c := range cols {
		sets[i] = quoteIdent(c) + " = ?"
		args = append(args, values[c])
	}
	where, whereArgs := whereClause(tmpl)
	args = append(args, whereArgs...)
	return "UPDATE " + quoteIdent(table) + " SET " + strings.Join(sets, ", ") + where, args
}

func insertStatement(table string, record types.Row) (string, []any) {
	if len(record) == 0 {
		return "INSERT INTO " + quoteIdent(table) + " DEFAULT VALUES", nil
	}
	cols := record.Columns()
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = record[c]
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), joinColumns(cols), placeholders(len(cols))), args
}

// duplicateKeyProbe lists every complete primary key value shared by more
// than one row, followed by the number of rows sharing it. Rows with a NULL
// key column are not compared.
func duplicateKeyProbe(table string, keyColumns []string) string {
	keys := joinColumns(keyColumns)
	notNull := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		notNull[i] = quoteIdent(c) + " IS NOT NULL"
	}
	return fmt.Sprintf("SELECT %s, COUNT(*) FROM %s WHERE %s GROUP BY %s HAVING COUNT(*) > 1",
		keys, quoteIdent(table), strings.Join(notNull, " AND "), keys)
}

// createTableStatement declares every column as TEXT, matching the text
// values memory tables hold, with a composite primary key when keys are set.
func createTableStatement(table string, columns, keyColumns []string) string {
	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		defs = append(defs, quoteIdent(c)+" TEXT")
	}
	if len(keyColumns) > 0 {
		defs = append(defs, "PRIMARY KEY ("+joinColumns(keyColumns)+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(defs, ", "))
}
