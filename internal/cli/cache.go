package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/store"
)

// CacheOptions holds flags shared by the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Database string
}

// ArtifactInfo is the listing form of a cached artifact.
type ArtifactInfo struct {
	Seq         int64          `json:"seq"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Arch        string         `json:"arch"`
	ByteOrder   string         `json:"byte_order"`
	CodeSize    uint32         `json:"code_size"`
	DataSize    uint32         `json:"data_size"`
	EntryOffset uint32         `json:"entry_offset"`
	Outputs     []store.Output `json:"outputs"`
	Listing     string         `json:"listing,omitempty"`
}

func artifactInfo(a *store.Artifact) ArtifactInfo {
	return ArtifactInfo{
		Seq:         a.Seq,
		Key:         a.Key,
		Name:        a.Name,
		Arch:        a.Arch,
		ByteOrder:   a.Order.String(),
		CodeSize:    a.CodeSize,
		DataSize:    a.DataSize,
		EntryOffset: a.EntryOffset,
		Outputs:     a.Outputs,
	}
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the artifact cache",
		Long: `Inspect the SQLite artifact cache populated by "stitch compile --db"
and "stitch run --db".

Examples:
  stitch cache list --db stitch.db
  stitch cache show <key> --db stitch.db
  stitch cache rm <key> --db stitch.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "stitch.db", "SQLite artifact cache")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List cached artifacts in insertion order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show <key>",
		Short:         "Show a cached artifact and its command listing",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheShow(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "rm <key>",
		Short:         "Remove a cached artifact",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheRemove(opts, args[0], cmd)
		},
	})

	return cmd
}

// withStore opens the cache, runs fn and closes the cache.
func (o *CacheOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	st, err := store.Open(o.Database)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, st)
}

func runCacheList(opts *CacheOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var infos []ArtifactInfo
	err := opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
		artifacts, err := st.ListArtifacts(ctx)
		if err != nil {
			return err
		}
		infos = make([]ArtifactInfo, len(artifacts))
		for i, a := range artifacts {
			infos[i] = artifactInfo(a)
		}
		return nil
	})
	if err != nil {
		return formatter.Fail(ErrCodeCache, err)
	}

	if opts.Format == "json" {
		return formatter.Success(infos)
	}
	w := formatter.Writer
	if len(infos) == 0 {
		fmt.Fprintln(w, "No cached artifacts.")
		return nil
	}
	for _, a := range infos {
		fmt.Fprintf(w, "%4d  %s  %-16s %s/%s  code=%d data=%d\n",
			a.Seq, a.Key, a.Name, a.Arch, a.ByteOrder, a.CodeSize, a.DataSize)
	}
	return nil
}

func runCacheShow(opts *CacheOptions, key string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var info ArtifactInfo
	err := opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
		a, err := st.GetArtifact(ctx, key)
		if err != nil {
			return err
		}
		records, err := command.Decode(a.Stream, a.Order)
		if err != nil {
			return err
		}
		info = artifactInfo(a)
		info.Listing = command.Listing(records)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ErrCodeNotFound, err)
	}
	if err != nil {
		return formatter.Fail(ErrCodeCache, err)
	}

	if opts.Format == "json" {
		return formatter.Success(info)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "Key:     %s\n", info.Key)
	fmt.Fprintf(w, "Program: %s\n", info.Name)
	fmt.Fprintf(w, "Target:  %s, %s\n", info.Arch, info.ByteOrder)
	fmt.Fprintf(w, "Code:    %d bytes, entry at %#x\n", info.CodeSize, info.EntryOffset)
	fmt.Fprintf(w, "Data:    %d bytes\n", info.DataSize)
	for _, out := range info.Outputs {
		fmt.Fprintf(w, "Output:  %s (net %d)\n", out.Name, out.Net)
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, info.Listing)
	return nil
}

func runCacheRemove(opts *CacheOptions, key string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	err := opts.withStore(cmd, func(ctx context.Context, st *store.Store) error {
		return st.DeleteArtifact(ctx, key)
	})
	if err != nil {
		return formatter.Fail(ErrCodeCache, err)
	}
	if opts.Format == "json" {
		return formatter.Success(map[string]string{"removed": key})
	}
	fmt.Fprintf(formatter.Writer, "Removed %s\n", key)
	return nil
}
