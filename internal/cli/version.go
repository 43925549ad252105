package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/rowstore/pkg/rowstore"
)

const modulePath = "github.com/mesh-intelligence/rowstore"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rowstore version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "rowstore v%s\nmodule: %s\n", rowstore.Version, modulePath)
			return nil
		},
	}
}
