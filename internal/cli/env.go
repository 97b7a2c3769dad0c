package cli

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/interp"
	"github.com/roach88/stitch/internal/program"
	"github.com/roach88/stitch/internal/runner"
	"github.com/roach88/stitch/internal/stencil"
	"github.com/roach88/stitch/internal/target"
)

// Backend names.
const (
	BackendVM     = "vm"
	BackendNative = "native"
)

// EnvStencilDir names the stencil directory when --stencils is not set.
const EnvStencilDir = "STITCH_STENCIL_DIR"

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// logger writes structured logs to stderr: debug with --verbose,
// warnings only otherwise.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) byteOrder() binary.ByteOrder {
	if o.Order == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o *RootOptions) stencilDir() string {
	if o.StencilDir != "" {
		return o.StencilDir
	}
	return os.Getenv(EnvStencilDir)
}

// database loads the stencil database for the selected backend.
func (o *RootOptions) database(logger *slog.Logger) (*stencil.Database, error) {
	if o.Backend == BackendVM {
		obj, err := interp.StencilObject(o.byteOrder())
		if err != nil {
			return nil, err
		}
		return stencil.Parse(obj)
	}

	dir := o.stencilDir()
	if dir == "" {
		return nil, fmt.Errorf("no stencil directory: pass --stencils or set %s", EnvStencilDir)
	}
	reg := stencil.NewRegistry(dir, stencil.WithRegistryLogger(logger))
	return reg.Get(o.Arch, o.Opt)
}

// memory creates the runtime memory for the selected backend.
func (o *RootOptions) memory(db *stencil.Database, logger *slog.Logger) (runner.Memory, error) {
	if o.Backend == BackendVM {
		order := db.ByteOrder()
		return runner.NewHeapMemory(order, interp.NewMachine(order, interp.WithMachineLogger(logger)), interp.DataBase), nil
	}
	if !runner.NativeSupported {
		return nil, runner.ErrNativeUnsupported
	}
	return runner.NewNativeMemory()
}

// errBackend marks memory construction failures so they are reported
// under ErrCodeBackend.
var errBackend = errors.New("backend unavailable")

// newTarget loads stencils and creates a target on the selected backend.
func (o *RootOptions) newTarget(logger *slog.Logger) (*target.Target, error) {
	db, err := o.database(logger)
	if err != nil {
		return nil, err
	}
	mem, err := o.memory(db, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBackend, err)
	}
	return target.New(db, mem, target.WithLogger(logger))
}

// loadProgram reads a program file and builds it against catalog.
func loadProgram(path string, catalog graph.Catalog) (*program.Program, error) {
	spec, err := program.Load(path)
	if err != nil {
		return nil, err
	}
	return program.Build(spec, catalog)
}

// parseValue converts a --set value: ints, then floats, then bools.
func parseValue(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b, nil
	}
	return nil, fmt.Errorf("cannot parse %q as int, float or bool", s)
}

// parseAssignment splits name=value.
func parseAssignment(s string) (string, any, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("expected name=value, got %q", s)
	}
	v, err := parseValue(raw)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", name, err)
	}
	return name, v, nil
}
