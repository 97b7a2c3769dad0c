package cli

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"
)

// StencilsOptions holds flags for the stencils command.
type StencilsOptions struct {
	*RootOptions
	Filter string
}

// StencilInfo describes one stencil.
type StencilInfo struct {
	Name   string `json:"name"`
	Result string `json:"result,omitempty"`
	Size   int    `json:"size"`
}

// StencilsResult is the JSON payload of the stencils command.
type StencilsResult struct {
	Arch      string        `json:"arch"`
	ByteOrder string        `json:"byte_order"`
	Digest    string        `json:"digest"`
	Count     int           `json:"count"`
	Stencils  []StencilInfo `json:"stencils"`
}

// NewStencilsCommand creates the stencils command.
func NewStencilsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StencilsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stencils",
		Short: "List the stencils of the selected stencil object",
		Long: `List the stencils of the selected stencil object with the dtype
each leaves in its result slot.

Examples:
  stitch stencils
  stitch stencils --filter 'add_*'
  stitch stencils --backend native --stencils ./stencils --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStencils(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only list stencils matching this glob")

	return cmd
}

func runStencils(opts *StencilsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := path.Match(opts.Filter, ""); err != nil {
		return formatter.Fail(ErrCodeGeneric, fmt.Errorf("invalid filter %q: %w", opts.Filter, err))
	}
	db, err := opts.database(opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail(ErrCodeStencils, err)
	}

	result := StencilsResult{
		Arch:      db.Arch(),
		ByteOrder: db.ByteOrder().String(),
		Digest:    db.Digest(),
		Stencils:  []StencilInfo{},
	}
	for _, name := range db.Stencils() {
		if opts.Filter != "" {
			if ok, _ := path.Match(opts.Filter, name); !ok {
				continue
			}
		}
		info := StencilInfo{Name: name}
		if d, ok := db.ResultDtype(name); ok {
			info.Result = d.String()
		}
		if size, err := db.SymbolSize(name); err == nil {
			info.Size = size
		}
		result.Stencils = append(result.Stencils, info)
	}
	result.Count = len(result.Stencils)

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Stencil object: %s, %s\n", result.Arch, result.ByteOrder)
	fmt.Fprintf(w, "Digest: %s\n\n", result.Digest)
	for _, s := range result.Stencils {
		dtype := s.Result
		if dtype == "" {
			dtype = "-"
		}
		fmt.Fprintf(w, "  %-28s %-6s %5d bytes\n", s.Name, dtype, s.Size)
	}
	fmt.Fprintf(w, "\n%d stencils\n", result.Count)
	return nil
}
