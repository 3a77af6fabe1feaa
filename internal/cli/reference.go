package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Print a reference entity",
		Long: `Get prints the entity of the given kind with the given unique_code.

Kinds accept synonyms and plurals: unit, units, group, warehouse, ...

Example:
  larder get range kg
  larder get nomenclature 0190f6c2-...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				e, err := a.svc.Get(args[0], args[1])
				if err != nil {
					return requestErr(err)
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the entities of a reference kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				list, err := a.svc.List(args[0])
				if err != nil {
					return requestErr(err)
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}
}

func newAddCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add <kind> [json]",
		Short: "Add a reference entity",
		Long: `Add creates an entity of the given kind from a JSON object. References are
given by unique_code. A missing unique_code is generated.

Example:
  larder add range '{"unique_code":"kg","name":"kilogram","value":1}'
  larder add nomenclature --file flour.json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := fieldsFrom(cmd, args, 1, file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				e, err := a.svc.Add(args[0], fields)
				if err != nil {
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

func newUpdateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update <kind> <id> [json]",
		Short: "Update fields of a reference entity",
		Long: `Update applies the given fields to the entity and propagates the change to
every recipe, movement and reference that holds it.

Example:
  larder update nomenclature N1 '{"name":"wheat flour"}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := fieldsFrom(cmd, args, 2, file)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				e, applied, err := a.svc.Update(args[0], args[1], fields)
				if err != nil {
					return requestErr(err)
				}
				if err := a.save(); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"entity": e, "applied": applied})
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the JSON object from a file (- for stdin)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a reference entity",
		Long: `Delete removes the entity unless something still refers to it. The first
holders are listed when the delete is refused.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if err := a.svc.Delete(args[0], args[1]); err != nil {
					return requestErr(err)
				}
				if err := a.save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

// fieldsFrom reads the JSON object given as args[pos] or through --file.
func fieldsFrom(cmd *cobra.Command, args []string, pos int, file string) (map[string]any, error) {
	var arg string
	if len(args) > pos {
		arg = args[pos]
	}
	data, err := readInput(arg, file, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return decodeFields(data)
}
