package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List reference kinds and collection keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tCOLLECTION")
			for _, k := range types.Kinds {
				fmt.Fprintf(w, "%s\t%s\n", k, k.Key())
			}
			for _, key := range types.CollectionKeys {
				if _, isReference := types.KindOf(key); !isReference {
					fmt.Fprintf(w, "-\t%s\n", key)
				}
			}
			return w.Flush()
		},
	}
}
