package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// columnLister is implemented by tables that know their column order.
type columnLister interface {
	Columns() []string
}

// outputColumns picks the columns to print: the projection when given,
// otherwise the table's columns followed by any others the rows carry.
func outputColumns(tbl types.Table, rows []types.Row, fields []string) []string {
	if len(fields) > 0 {
		return fields
	}
	var cols []string
	seen := make(map[string]bool)
	if cl, ok := tbl.(columnLister); ok {
		for _, c := range cl.Columns() {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	var extra []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				extra = append(extra, c)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// writeRows prints rows as indented JSON or as an aligned text table.
func writeRows(w io.Writer, jsonMode bool, cols []string, rows []types.Row) error {
	if jsonMode {
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No rows")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, formatCell(r, c))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func formatCell(r types.Row, col string) string {
	v, ok := r[col]
	switch {
	case !ok:
		return ""
	case v == nil:
		return "NULL"
	}
	return fmt.Sprint(v)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeCount reports how many rows a mutation affected.
func writeCount(w io.Writer, jsonMode bool, verb string, n int) error {
	if jsonMode {
		return writeJSON(w, map[string]int{verb: n})
	}
	_, err := fmt.Fprintf(w, "%s%s %d row(s)\n", strings.ToUpper(verb[:1]), verb[1:], n)
	return err
}
