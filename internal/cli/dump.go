package cli

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/command"
)

// DumpOptions holds flags for the dump command.
type DumpOptions struct {
	*RootOptions
}

// RecordJSON is the JSON form of one command record.
type RecordJSON struct {
	Pos    int    `json:"pos"`
	Op     string `json:"op"`
	Offset uint32 `json:"offset,omitempty"`
	Size   uint32 `json:"size,omitempty"`
	Kind   uint32 `json:"kind,omitempty"`
	Value  int32  `json:"value,omitempty"`
	Data   string `json:"data,omitempty"`
}

// NewDumpCommand creates the dump command.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DumpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dump <program|stream.bin>",
		Short: "List the records of a command stream",
		Long: `List the records of a command stream.

A .bin argument is decoded as a stream written by "stitch compile -o",
in the byte order given by --order. Any other argument is assembled as a
program first.

Examples:
  stitch dump example.yaml
  stitch dump example.bin --order big
  stitch dump example.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(opts, args[0], cmd)
		},
	}
	return cmd
}

func runDump(opts *DumpOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var records []command.Record
	if filepath.Ext(path) == ".bin" {
		data, err := os.ReadFile(path)
		if err != nil {
			return formatter.Fail(ErrCodeNotFound, fmt.Errorf("reading stream: %w", err))
		}
		records, err = command.Decode(data, opts.byteOrder())
		if err != nil {
			return formatter.Fail(ErrCodeGeneric, err)
		}
	} else {
		c, code, err := assembleProgram(opts.RootOptions, path, cmd)
		if err != nil {
			return formatter.Fail(code, err)
		}
		records = c.res.Records
	}

	if opts.Format == "json" {
		out := make([]RecordJSON, len(records))
		for i, r := range records {
			out[i] = RecordJSON{
				Pos:    r.Pos,
				Op:     r.Op.String(),
				Offset: r.Offset,
				Size:   r.Size,
				Kind:   r.Kind,
				Value:  r.Value,
				Data:   hex.EncodeToString(r.Data),
			}
		}
		return formatter.Success(out)
	}
	fmt.Fprint(formatter.Writer, command.Listing(records))
	return nil
}
