package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Backend selects where programs execute: "vm" runs the virtual
	// stencil object in the interpreter, "native" maps real stencils.
	Backend string

	// Order is the byte order of the virtual stencil object.
	Order string

	// StencilDir holds stencils_<arch>_<opt>.o files for the native
	// backend. Falls back to $STITCH_STENCIL_DIR.
	StencilDir string
	Arch       string
	Opt        string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidBackends defines the allowed execution backends.
var ValidBackends = []string{BackendVM, BackendNative}

// NewRootCommand creates the root command for the stitch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stitch",
		Short: "stitch - a copy-and-patch JIT",
		Long: `A copy-and-patch JIT compiler for small arithmetic data-flow programs.

Programs are scheduled into a sequence of precompiled machine-code
stencils, concatenated, patched and executed in place.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if !slices.Contains(ValidBackends, opts.Backend) {
				return fmt.Errorf("invalid backend %q: must be one of %v", opts.Backend, ValidBackends)
			}
			if opts.Order != "little" && opts.Order != "big" {
				return fmt.Errorf("invalid order %q: must be little or big", opts.Order)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", BackendVM, "execution backend (vm|native)")
	cmd.PersistentFlags().StringVar(&opts.Order, "order", "little", "byte order of the virtual stencil object (little|big)")
	cmd.PersistentFlags().StringVar(&opts.StencilDir, "stencils", "", "stencil object directory (default $"+EnvStencilDir+")")
	cmd.PersistentFlags().StringVar(&opts.Arch, "arch", "native", "stencil architecture (native|x86_64|aarch64)")
	cmd.PersistentFlags().StringVar(&opts.Opt, "opt", "O3", "stencil optimization level")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDumpCommand(opts))
	cmd.AddCommand(NewStencilsCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCacheCommand(opts))

	return cmd
}
