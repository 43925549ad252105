// Package cli implements the rowstore command-line interface: cobra commands
// over the tables attached from config.yaml.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rowstore/internal/paths"
	"github.com/mesh-intelligence/rowstore/pkg/rowstore"
	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	logLevel  string
}

// app is the state shared by the commands of one root command.
type app struct {
	flags   rootFlags
	logger  *slog.Logger
	config  *types.Config
	catalog *rowstore.Catalog
}

// NewRootCmd creates the top-level "rowstore" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "rowstore",
		Short: "Query and edit keyed tables stored in CSV files or SQLite",
		Long: "rowstore finds, inserts, updates and deletes rows in the tables described\n" +
			"by config.yaml. Memory tables load a CSV or JSONL file; sqlite tables\n" +
			"forward every operation to a database.",
		Version:           rowstore.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: ./.rowstore or the platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "directory relative table paths resolve against (default: working directory)")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newTablesCmd(a))
	root.AddCommand(newFindCmd(a))
	root.AddCommand(newGetCmd(a))
	root.AddCommand(newInsertCmd(a))
	root.AddCommand(newUpdateCmd(a))
	root.AddCommand(newDeleteCmd(a))
	root.AddCommand(newRowsCmd(a))
	root.AddCommand(newCopyCmd(a))

	return root, a
}

// Execute runs the root command and returns the process exit code. Tables
// are detached even when the command fails.
func Execute() int {
	root, a := newRoot()
	err := root.Execute()
	err = errors.Join(err, a.teardown())
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// needsCatalog reports whether cmd operates on attached tables.
func needsCatalog(cmd *cobra.Command) bool {
	return cmd.Annotations["catalog"] == "true"
}

// setup installs the logger and, for table commands, loads config.yaml and
// attaches its tables.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), a.flags.logLevel)
	if err != nil {
		return userError(err)
	}
	a.logger = logger
	slog.SetDefault(logger)

	if !needsCatalog(cmd) {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	fc, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	if fc.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		if a.logger, err = newLogger(cmd.ErrOrStderr(), fc.LogLevel); err != nil {
			return userError(err)
		}
		slog.SetDefault(a.logger)
	}
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, fc.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	a.logger.Debug("configuration loaded", "config_dir", configDir, "data_dir", dataDir, "tables", len(fc.Tables))

	cfg := types.Config{Tables: fc.Tables}
	catalog := rowstore.NewCatalog(rowstore.WithLogger(a.logger), rowstore.WithDataDir(dataDir))
	if err := catalog.Attach(cfg); err != nil {
		return fmt.Errorf("attach tables: %w", err)
	}
	a.config = &cfg
	a.catalog = catalog
	return nil
}

func (a *app) teardown() error {
	if a.catalog == nil {
		return nil
	}
	err := a.catalog.Detach()
	a.catalog = nil
	return err
}

// table returns the attached table called name. An unknown name is a user
// error listing the configured tables.
func (a *app) table(name string) (types.Table, error) {
	t, err := a.catalog.GetTable(name)
	if errors.Is(err, types.ErrTableNotFound) {
		return nil, userError(fmt.Errorf("unknown table %q (configured: %v)", name, a.catalog.TableNames()))
	}
	return t, err
}
