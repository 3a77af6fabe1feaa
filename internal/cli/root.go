// Package cli implements the larder command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/catalog"
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
}

var flags rootFlags

// NewRootCmd creates the top-level "larder" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "larder",
		Short: "Reference catalog for stock items, units, categories and storages",
		Long: "Larder keeps the reference catalog of a small inventory system: nomenclature,\n" +
			"units of measure, categories and storages, with recipes and stock movements\n" +
			"that refer to them. Deletes are refused while anything still refers to the\n" +
			"entity; updates propagate to every holder.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $LARDER_CONFIG_DIR)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: backing.path, $LARDER_DATA_DIR or .larder-db)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newKindsCmd(),
		newGetCmd(),
		newListCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newRecordCmd(),
		newRecordsCmd(),
		newLockDateCmd(),
		newAuditCmd(),
	)
	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}
	fmt.Fprintln(os.Stderr, "larder:", err)
	os.Exit(exitCode(err))
}

// sysError marks failures of the environment (configuration, storage, I/O)
// rather than of the request.
type sysError struct{ err error }

func (e *sysError) Error() string { return e.err.Error() }

func (e *sysError) Unwrap() error { return e.err }

func systemErr(err error) error {
	if err == nil {
		return nil
	}
	return &sysError{err: err}
}

// requestErr classifies an error returned by the catalog.
func requestErr(err error) error {
	if err == nil {
		return nil
	}
	if catalog.StatusCode(err) >= 500 {
		return systemErr(err)
	}
	return err
}

func exitCode(err error) int {
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}
