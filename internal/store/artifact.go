package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/stitch/internal/assemble"
	"github.com/roach88/stitch/internal/graph"
	"github.com/roach88/stitch/internal/ir"
	"github.com/roach88/stitch/internal/stencil"
)

// ErrNotFound is returned by GetArtifact when no artifact has the key.
var ErrNotFound = errors.New("artifact not found")

// Output names a stored net of a cached program.
type Output struct {
	Name string      `json:"name"`
	Net  graph.NetID `json:"net"`
}

// Artifact is a compiled, unterminated command stream together with the
// heap layout needed to read its results back.
type Artifact struct {
	Seq           int64
	Key           string
	Name          string
	GraphHash     string
	StencilsHash  string
	Arch          string
	Order         binary.ByteOrder
	Stream        []byte
	Variables     map[graph.NetID]assemble.Variable
	EntryOffset   uint32
	CodeSize      uint32
	DataSize      uint32
	Outputs       []Output
	FormatVersion string
	ToolVersion   string
}

// variableRow is the JSON shape of one heap cell in the variables column.
type variableRow struct {
	Net    graph.NetID `json:"net"`
	Offset uint32      `json:"offset"`
	Size   uint32      `json:"size"`
	Dtype  graph.Dtype `json:"dtype"`
}

// NewArtifact packages an assembled program for caching. graphHash is the
// digest of the graph the result was assembled from.
func NewArtifact(name, graphHash string, db *stencil.Database, res *assemble.Result, outputs []Output) (*Artifact, error) {
	key, err := ir.ArtifactKey(graphHash, db.Digest())
	if err != nil {
		return nil, fmt.Errorf("new artifact: %w", err)
	}
	return &Artifact{
		Key:           key,
		Name:          name,
		GraphHash:     graphHash,
		StencilsHash:  db.Digest(),
		Arch:          db.Arch(),
		Order:         res.Order,
		Stream:        slices.Clone(res.Stream),
		Variables:     res.Variables,
		EntryOffset:   res.EntryOffset,
		CodeSize:      res.Layout.CodeSize,
		DataSize:      res.Layout.DataSize,
		Outputs:       slices.Clone(outputs),
		FormatVersion: ir.FormatVersion,
		ToolVersion:   ir.ToolVersion,
	}, nil
}

func orderName(order binary.ByteOrder) (string, error) {
	switch order {
	case binary.LittleEndian:
		return "little", nil
	case binary.BigEndian:
		return "big", nil
	}
	return "", fmt.Errorf("unsupported byte order %v", order)
}

func parseOrder(name string) (binary.ByteOrder, error) {
	switch name {
	case "little":
		return binary.LittleEndian, nil
	case "big":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("unknown byte order %q", name)
}

// marshalVariables encodes the heap layout sorted by net so equal layouts
// produce identical column text.
func marshalVariables(vars map[graph.NetID]assemble.Variable) (string, error) {
	rows := make([]variableRow, 0, len(vars))
	for net, v := range vars {
		rows = append(rows, variableRow{Net: net, Offset: v.Offset, Size: v.Size, Dtype: v.Dtype})
	}
	slices.SortFunc(rows, func(a, b variableRow) int { return int(a.Net) - int(b.Net) })
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("marshal variables: %w", err)
	}
	return string(data), nil
}

func unmarshalVariables(data string) (map[graph.NetID]assemble.Variable, error) {
	var rows []variableRow
	if err := json.Unmarshal([]byte(data), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	vars := make(map[graph.NetID]assemble.Variable, len(rows))
	for _, r := range rows {
		vars[r.Net] = assemble.Variable{Offset: r.Offset, Size: r.Size, Dtype: r.Dtype}
	}
	return vars, nil
}

// PutArtifact inserts an artifact. Uses ON CONFLICT(key) DO NOTHING, so
// storing the same key twice keeps the first copy. The returned seq is the
// stored row's.
func (s *Store) PutArtifact(ctx context.Context, a *Artifact) (int64, error) {
	order, err := orderName(a.Order)
	if err != nil {
		return 0, fmt.Errorf("put artifact: %w", err)
	}
	vars, err := marshalVariables(a.Variables)
	if err != nil {
		return 0, fmt.Errorf("put artifact: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("put artifact: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts
		(key, name, graph_hash, stencils_hash, arch, byte_order, stream, variables,
		 entry_offset, code_size, data_size, format_version, tool_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`,
		a.Key,
		a.Name,
		a.GraphHash,
		a.StencilsHash,
		a.Arch,
		order,
		a.Stream,
		vars,
		a.EntryOffset,
		a.CodeSize,
		a.DataSize,
		a.FormatVersion,
		a.ToolVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("put artifact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("put artifact: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT seq FROM artifacts WHERE key = ?`, a.Key).Scan(&seq); err != nil {
		return 0, fmt.Errorf("put artifact: read seq: %w", err)
	}

	if n > 0 {
		for i, out := range a.Outputs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO artifact_outputs (artifact_seq, position, name, net)
				VALUES (?, ?, ?, ?)
			`, seq, i, out.Name, out.Net); err != nil {
				return 0, fmt.Errorf("put artifact: output %q: %w", out.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("put artifact: commit: %w", err)
	}
	a.Seq = seq
	return seq, nil
}

const artifactColumns = `seq, key, name, graph_hash, stencils_hash, arch, byte_order, stream,
	variables, entry_offset, code_size, data_size, format_version, tool_version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*Artifact, error) {
	var (
		a     Artifact
		order string
		vars  string
	)
	err := row.Scan(&a.Seq, &a.Key, &a.Name, &a.GraphHash, &a.StencilsHash, &a.Arch, &order,
		&a.Stream, &vars, &a.EntryOffset, &a.CodeSize, &a.DataSize, &a.FormatVersion, &a.ToolVersion)
	if err != nil {
		return nil, err
	}
	if a.Order, err = parseOrder(order); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Key, err)
	}
	if a.Variables, err = unmarshalVariables(vars); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", a.Key, err)
	}
	return &a, nil
}

func (s *Store) readOutputs(ctx context.Context, seq int64) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, net FROM artifact_outputs
		WHERE artifact_seq = ?
		ORDER BY position ASC
	`, seq)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	outputs := []Output{}
	for rows.Next() {
		var out Output
		if err := rows.Scan(&out.Name, &out.Net); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		outputs = append(outputs, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outputs: %w", err)
	}
	return outputs, nil
}

// GetArtifact returns the artifact stored under key, or ErrNotFound.
func (s *Store) GetArtifact(ctx context.Context, key string) (*Artifact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE key = ?`, key)
	a, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get artifact %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", key, err)
	}
	if a.Outputs, err = s.readOutputs(ctx, a.Seq); err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", key, err)
	}
	return a, nil
}

// ListArtifacts returns every stored artifact without its stream, ordered
// by seq ASC.
func (s *Store) ListArtifacts(ctx context.Context) ([]*Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM artifacts
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	artifacts := []*Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		a.Stream = nil
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	rows.Close()

	for _, a := range artifacts {
		if a.Outputs, err = s.readOutputs(ctx, a.Seq); err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
	}
	return artifacts, nil
}

// DeleteArtifact removes an artifact and its outputs. Deleting a missing
// key is not an error.
func (s *Store) DeleteArtifact(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete artifact %s: %w", key, err)
	}
	return nil
}
