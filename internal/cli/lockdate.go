package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/config"
	"github.com/mesh-intelligence/larder/pkg/types"
)

func newLockDateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock-date [YYYY-MM-DD]",
		Short: "Show or move the stock lock date",
		Long: `Without an argument, lock-date prints the current lock date. With a date it
moves the lock date, rebuilds the balances (rest_key) from transactions
dated on or before it, and stores it in config.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if len(args) == 0 {
					current := a.svc.LockDate()
					if current.IsZero() {
						fmt.Fprintln(cmd.OutOrStdout(), "lock date not set")
						return nil
					}
					fmt.Fprintln(cmd.OutOrStdout(), current.Format(config.LockDateLayout))
					return nil
				}

				date, err := time.ParseInLocation(config.LockDateLayout, args[0], time.UTC)
				if err != nil {
					return &types.ValidationError{Fields: []types.FieldError{{Field: "lock_date", Reason: err.Error()}}}
				}
				if err := a.svc.ChangeLockDate(date); err != nil {
					return requestErr(err)
				}
				if err := a.save(); err != nil {
					return err
				}
				if err := config.SaveLockDate(a.configDir, date); err != nil {
					return systemErr(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "lock date set to %s (%d balances)\n",
					date.Format(config.LockDateLayout), len(a.svc.Repository().Get(types.RestKey)))
				return nil
			})
		},
	}
}
