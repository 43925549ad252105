package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/rowstore/internal/paths"
	"github.com/mesh-intelligence/rowstore/pkg/types"
)

type initOptions struct {
	table    string
	backend  string
	keys     []string
	file     string
	database string
}

func newInitCmd(a *app) *cobra.Command {
	var o initOptions
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config.yaml",
		Long: "Create the configuration directory and a config.yaml describing one table.\n" +
			"An existing config.yaml is left untouched.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.table, "table", "people", "name of the table to describe")
	cmd.Flags().StringVar(&o.backend, "backend", types.BackendMemory, "backend of the table: memory or sqlite")
	cmd.Flags().StringSliceVar(&o.keys, "key", []string{"playerID"}, "primary key column (repeat for composite keys)")
	cmd.Flags().StringVar(&o.file, "file", "People.csv", "row source file of a memory table")
	cmd.Flags().StringVar(&o.database, "database", "rowstore.db", "database file of a sqlite table")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, o initOptions) error {
	// Without an explicit location init creates the project directory,
	// which later commands in this working directory pick up.
	configDir := paths.ProjectConfigDirName
	if a.flags.configDir != "" || os.Getenv(paths.EnvConfigDir) != "" {
		dir, err := paths.ResolveConfigDir(a.flags.configDir)
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		configDir = dir
	}

	tc := types.TableConfig{
		Name:       o.table,
		Backend:    o.backend,
		KeyColumns: o.keys,
	}
	switch o.backend {
	case types.BackendMemory:
		tc.Connect.FileName = o.file
	case types.BackendSQLite:
		tc.Connect.Database = o.database
		tc.Commit = true
	}
	if err := tc.Validate(); err != nil {
		return userError(fmt.Errorf("invalid table: %w", err))
	}

	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already exists\n", path)
		return nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := writeConfig(path, fileConfig{Tables: []types.TableConfig{tc}}); err != nil {
		return err
	}
	a.logger.Info("wrote configuration", "path", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// writeConfig marshals fc as YAML to path.
func writeConfig(path string, fc fileConfig) error {
	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
