package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rowstore/pkg/rowstore"
	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// lengther is implemented by tables that report their row count.
type lengther interface {
	Len() int
}

// persist makes a successful mutation durable. An emptied memory table keeps
// its previous file because saving zero rows writes nothing.
func (a *app) persist(tbl types.Table) error {
	if l, ok := tbl.(lengther); ok && l.Len() == 0 {
		a.logger.Warn("table is empty; row source left unchanged", "table", tbl.Name())
	}
	if err := rowstore.Flush(tbl); err != nil {
		return fmt.Errorf("persist %s: %w", tbl.Name(), err)
	}
	return nil
}

func newInsertCmd(a *app) *cobra.Command {
	var generateKey bool
	cmd := catalogCmd(&cobra.Command{
		Use:   "insert <table> column=value...",
		Short: "Insert a row",
		Long: `Insert adds a row built from the column=value arguments. The row must
carry every primary key column and its key must not already exist.

Example:
  rowstore insert people playerID=ruthba01 nameFirst=Babe nameLast=Ruth
  rowstore insert notes text=hello --generate-key`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			record, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			if generateKey {
				if err := fillGeneratedKey(tbl.KeyColumns(), record); err != nil {
					return err
				}
			}
			if err := tbl.Insert(record); err != nil {
				return err
			}
			if err := a.persist(tbl); err != nil {
				return err
			}
			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), record)
			}
			return writeCount(cmd.OutOrStdout(), false, "inserted", 1)
		},
	})
	cmd.Flags().BoolVar(&generateKey, "generate-key", false, "fill a missing single key column with a UUID v7")
	return cmd
}

// fillGeneratedKey sets a UUID v7 on the one key column the record lacks.
func fillGeneratedKey(keyColumns []string, record types.Row) error {
	missing := types.MissingKeyColumns(keyColumns, record)
	switch {
	case len(keyColumns) == 0:
		return types.ErrNoPrimaryKey
	case len(missing) == 0:
		return nil
	case len(missing) > 1:
		return userError(fmt.Errorf("--generate-key fills one key column, %d are missing: %v", len(missing), missing))
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	record[missing[0]] = id.String()
	return nil
}

type mutateOptions struct {
	key []string
	set []string
	all bool
}

// target resolves the rows a mutation applies to: the --key values or the
// column=value filters. An empty filter needs --all.
func (o mutateOptions) target(filters []string) (key []any, tmpl types.Template, err error) {
	if len(o.key) > 0 {
		if len(filters) > 0 {
			return nil, nil, userError(errors.New("use either --key or column=value filters, not both"))
		}
		key, err = parseKey(o.key)
		return key, nil, err
	}
	row, err := parseAssignments(filters)
	if err != nil {
		return nil, nil, err
	}
	if len(row) == 0 && !o.all {
		return nil, nil, userError(errors.New("no filter given; pass --all to affect every row"))
	}
	return nil, types.Template(row), nil
}

func newUpdateCmd(a *app) *cobra.Command {
	var o mutateOptions
	cmd := catalogCmd(&cobra.Command{
		Use:   "update <table> [column=value...] --set column=value",
		Short: "Set columns on the matching rows",
		Long: `Update sets every --set column on the rows selected by --key or by the
column=value filters. The update is rejected as a whole when it would give two
rows the same primary key.

Example:
  rowstore update people --key aaronha01 --set birthCity=Mobile
  rowstore update people birthYear=1934 --set note=legend`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			key, tmpl, err := o.target(args[1:])
			if err != nil {
				return err
			}
			values, err := parseAssignments(o.set)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return userError(errors.New("nothing to set; pass --set column=value"))
			}

			var n int
			if key != nil {
				n, err = tbl.UpdateByPrimaryKey(key, values)
			} else {
				n, err = tbl.UpdateByTemplate(tmpl, values)
			}
			if err != nil {
				return err
			}
			if err := a.persist(tbl); err != nil {
				return err
			}
			return writeCount(cmd.OutOrStdout(), a.flags.jsonMode, "updated", n)
		},
	})
	cmd.Flags().StringSliceVar(&o.key, "key", nil, "primary key values of the row to update")
	cmd.Flags().StringArrayVar(&o.set, "set", nil, "column=value to set (repeatable)")
	cmd.Flags().BoolVar(&o.all, "all", false, "update every row when no filter is given")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var o mutateOptions
	cmd := catalogCmd(&cobra.Command{
		Use:   "delete <table> [column=value...]",
		Short: "Delete the matching rows",
		Long: `Delete removes the row selected by --key or every row matching the
column=value filters.

Example:
  rowstore delete people --key aardsda01
  rowstore delete people birthCity=Denver
  rowstore delete people --all`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := a.table(args[0])
			if err != nil {
				return err
			}
			key, tmpl, err := o.target(args[1:])
			if err != nil {
				return err
			}

			var n int
			if key != nil {
				n, err = tbl.DeleteByPrimaryKey(key)
			} else {
				n, err = tbl.DeleteByTemplate(tmpl)
			}
			if err != nil {
				return err
			}
			if err := a.persist(tbl); err != nil {
				return err
			}
			return writeCount(cmd.OutOrStdout(), a.flags.jsonMode, "deleted", n)
		},
	})
	cmd.Flags().StringSliceVar(&o.key, "key", nil, "primary key values of the row to delete")
	cmd.Flags().BoolVar(&o.all, "all", false, "delete every row when no filter is given")
	return cmd
}

func newCopyCmd(a *app) *cobra.Command {
	return catalogCmd(&cobra.Command{
		Use:   "copy <from-table> <to-table>",
		Short: "Insert every row of one table into another",
		Long: `Copy reads every row of the source table and inserts it into the
destination, for example to load a CSV table into a sqlite table. A missing or
duplicate key rejects the whole batch.

Example:
  rowstore copy people people_db`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.table(args[0])
			if err != nil {
				return err
			}
			dst, err := a.table(args[1])
			if err != nil {
				return err
			}
			n, err := rowstore.Copy(dst, src)
			if err != nil {
				return err
			}
			if err := a.persist(dst); err != nil {
				return err
			}
			return writeCount(cmd.OutOrStdout(), a.flags.jsonMode, "copied", n)
		},
	})
}
