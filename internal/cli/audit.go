package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/audit"
)

func newAuditCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print the change journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				entries, err := audit.Read(a.journal.Path())
				if err != nil {
					return systemErr(err)
				}
				if last > 0 && len(entries) > last {
					entries = entries[len(entries)-last:]
				}
				if entries == nil {
					entries = []audit.Entry{}
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 0, "print only the last n entries")
	return cmd
}
