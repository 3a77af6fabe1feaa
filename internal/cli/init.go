package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize larder storage",
		Long: "Create the configuration directory and config.yaml if missing, then\n" +
			"write an empty repository document unless one already exists.",
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(a *app) error {
		if a.loaded {
			fmt.Fprintf(cmd.OutOrStdout(), "larder already initialized at %s\n", a.backing.Name())
			return nil
		}
		if err := a.save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "larder initialized at %s\nconfig: %s\n", a.backing.Name(), a.configDir)
		return nil
	})
}
