package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func newRecordCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "record <collection> [json]",
		Short: "Add a recipe or stock movement",
		Long: `Record adds a document to receipt_model, transaction_key or
turnover_key. Every reference must name an existing entity. Balances
(rest_key) are rebuilt from transactions and cannot be recorded.

Example:
  larder record transaction_key '{"nomenclature_id":"N1","unit_id":"kg","storage_id":"st","value":"2.5"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) > 1 {
				arg = args[1]
			}
			data, err := readInput(arg, file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			key := types.CollectionKey(args[0])
			e, err := types.NewEntity(key)
			if err != nil {
				return fmt.Errorf("%w: %q", err, key)
			}
			if err := json.Unmarshal(data, e); err != nil {
				return fmt.Errorf("parse JSON: %w", err)
			}
			return withApp(cmd, func(a *app) error {
				if err := a.svc.AddRecord(key, e); err != nil {
					return requestErr(err)
				}
				if err := a.save(); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the JSON object from a file (- for stdin)")
	return cmd
}

func newRecordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "records <collection>",
		Short: "List the documents of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				list, err := a.svc.Records(types.CollectionKey(args[0]))
				if err != nil {
					return requestErr(err)
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
}
