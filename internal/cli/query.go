package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// catalogCmd marks cmd as needing attached tables.
func catalogCmd(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["catalog"] = "true"
	return cmd
}

func newTablesCmd(a *app) *cobra.Command {
	return catalogCmd(&cobra.Command{
		Use:   "tables",
		Short: "List the configured tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), a.config.Tables)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tBACKEND\tKEY\tSOURCE")
			for _, tc := range a.config.Tables {
				source := tc.Connect.Database
				if tc.Backend == types.BackendMemory {
					source = tc.Connect.FileName
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tc.Name, tc.Backend, strings.Join(tc.KeyColumns, ","), source)
			}
			return tw.Flush()
		},
	})
}

type findOptions struct {
	fields  []string
	limit   int
	offset  int
	orderBy []string
}

func newFindCmd(a *app) *cobra.Command {
	var o findOptions
	cmd := catalogCmd(&cobra.Command{
		Use:   "find <table> [column=value...]",
		Short: "Find rows matching every column=value filter",
		Long: `Find prints the rows of a table whose columns equal every filter.
Without filters every row matches. A row lacking a filtered column never
matches. Use column:=json for typed values such as note:=null.

Example:
  rowstore find people birthCity=Denver
  rowstore find people birthYear=1934 --fields nameFirst,nameLast
  rowstore find batting --order-by=-HR --limit 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			tmpl, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			rows, err := tbl.FindByTemplate(types.Template(tmpl), &types.FindOptions{
				Fields:  o.fields,
				Limit:   o.limit,
				Offset:  o.offset,
				OrderBy: o.orderBy,
			})
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), a.flags.jsonMode, outputColumns(tbl, rows, o.fields), rows)
		},
	})
	cmd.Flags().StringSliceVar(&o.fields, "fields", nil, "columns to print, in order")
	cmd.Flags().IntVar(&o.limit, "limit", 0, "maximum number of rows (0 for no limit)")
	cmd.Flags().IntVar(&o.offset, "offset", 0, "number of matching rows to skip")
	cmd.Flags().StringSliceVar(&o.orderBy, "order-by", nil, "columns to sort by; prefix with - for descending")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var fields []string
	cmd := catalogCmd(&cobra.Command{
		Use:   "get <table> <key-value>...",
		Short: "Get the row with the given primary key",
		Long: `Get prints the row whose primary key columns equal the given values, in
key column order. Composite keys take one value per key column. Values are
text; a leading ":" parses the rest as JSON, for sqlite columns that hold
numbers.

Example:
  rowstore get people aaronha01
  rowstore get appearances aaronha01 1954 ML1`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			key, err := parseKey(args[1:])
			if err != nil {
				return err
			}
			rows, err := tbl.FindByPrimaryKey(key, fields...)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return userError(fmt.Errorf("no row in %s with key %v", tbl.Name(), args[1:]))
			}
			return writeRows(cmd.OutOrStdout(), a.flags.jsonMode, outputColumns(tbl, rows, fields), rows)
		},
	})
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "columns to print, in order")
	return cmd
}

func newRowsCmd(a *app) *cobra.Command {
	return catalogCmd(&cobra.Command{
		Use:   "rows <table>",
		Short: "Print every row in stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			rows, err := tbl.Rows()
			if err != nil {
				return err
			}
			return writeRows(cmd.OutOrStdout(), a.flags.jsonMode, outputColumns(tbl, rows, nil), rows)
		},
	})
}
