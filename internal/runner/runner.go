package runner

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/stitch/internal/command"
	"github.com/roach88/stitch/internal/stencil"
)

// Readout is data a stream asked for: READ_DATA bytes or a DUMP_CODE image.
type Readout struct {
	Op     command.Opcode `json:"op"`
	Offset uint32         `json:"offset"`
	Data   []byte         `json:"data"`
}

// Runner interprets command streams against a Memory.
type Runner struct {
	mem    Memory
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger logs every executed command at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// New creates a Runner over mem.
func New(mem Memory, opts ...Option) *Runner {
	r := &Runner{
		mem:    mem,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Memory returns the memory the runner drives.
func (r *Runner) Memory() Memory { return r.mem }

// Execute runs stream until END_COM and returns what it read back.
// The stream must use the memory's byte order.
func (r *Runner) Execute(stream []byte) ([]Readout, error) {
	rd := command.NewReader(stream, r.mem.ByteOrder())
	var out []Readout
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("command stream ended without END_COM")
		}
		if err != nil {
			return nil, err
		}
		r.logger.Debug("command", "pos", rec.Pos, "op", rec.Op)

		switch rec.Op {
		case command.EndCom:
			return out, nil
		case command.FreeMemory:
			err = r.mem.Free()
		case command.AllocateCode:
			err = r.mem.Allocate(RegionCode, rec.Size)
		case command.AllocateData:
			err = r.mem.Allocate(RegionData, rec.Size)
		case command.CopyCode:
			err = r.mem.Copy(RegionCode, rec.Offset, rec.Data)
		case command.CopyData:
			err = r.mem.Copy(RegionData, rec.Offset, rec.Data)
		case command.PatchFunc:
			err = r.mem.Patch(rec.Offset, stencil.PatchKind(rec.Kind), rec.Value)
		case command.PatchObject:
			err = r.patchObject(rec)
		case command.EntryPoint:
			err = r.mem.SetEntry(rec.Offset)
		case command.RunProg:
			var ret int32
			ret, err = r.mem.Run()
			if err == nil {
				r.logger.Debug("program returned", "value", ret)
			}
		case command.ReadData:
			var data []byte
			data, err = r.mem.Read(RegionData, rec.Offset, rec.Size)
			if err == nil {
				out = append(out, Readout{Op: rec.Op, Offset: rec.Offset, Data: data})
			}
		case command.DumpCode:
			var code []byte
			code, err = r.dumpCode()
			if err == nil {
				out = append(out, Readout{Op: rec.Op, Data: code})
			}
		default:
			err = fmt.Errorf("unsupported command %s", rec.Op)
		}
		if err != nil {
			return nil, fmt.Errorf("%s at byte %d: %w", rec.Op, rec.Pos, err)
		}
	}
}

func (r *Runner) patchObject(rec command.Record) error {
	base, err := r.mem.DataOffset()
	if err != nil {
		return err
	}
	value := int64(rec.Value) + base
	if value < math.MinInt32 || value > math.MaxInt32 {
		return fmt.Errorf("data region is %d bytes from code, beyond a 32-bit displacement", base)
	}
	return r.mem.Patch(rec.Offset, stencil.PatchKind(rec.Kind), int32(value))
}

func (r *Runner) dumpCode() ([]byte, error) {
	return r.mem.Read(RegionCode, 0, r.mem.CodeSize())
}
