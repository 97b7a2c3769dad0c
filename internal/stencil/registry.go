package stencil

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
)

// NativeArch returns the stencil architecture name of the running process.
func NativeArch() (string, error) {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64", nil
	case "arm64":
		return "aarch64", nil
	default:
		return "", fmt.Errorf("no stencils for GOARCH %s", runtime.GOARCH)
	}
}

// FileName is the stencil object name for an architecture and optimization level.
func FileName(arch, opt string) string {
	return fmt.Sprintf("stencils_%s_%s.o", arch, opt)
}

type registryKey struct {
	arch string
	opt  string
}

// Registry loads stencil databases from a directory on first use and
// caches them by (architecture, optimization level).
//
// A Registry is owned by its caller; there is no process-wide cache.
// Thread-safe: Get may be called concurrently.
type Registry struct {
	dir    string
	logger *slog.Logger

	mu  sync.Mutex
	dbs map[registryKey]*Database
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger used to report loads.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry reading objects from dir.
func NewRegistry(dir string, opts ...RegistryOption) *Registry {
	r := &Registry{
		dir:    dir,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbs:    make(map[registryKey]*Database),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the database for arch and opt, loading it if needed.
// arch "native" resolves to the running architecture.
func (r *Registry) Get(arch, opt string) (*Database, error) {
	if arch == "native" {
		native, err := NativeArch()
		if err != nil {
			return nil, err
		}
		arch = native
	}
	key := registryKey{arch: arch, opt: opt}

	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.dbs[key]; ok {
		return db, nil
	}

	path := filepath.Join(r.dir, FileName(arch, opt))
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if db.Arch() != arch {
		return nil, fmt.Errorf("%s: object is %s, expected %s", path, db.Arch(), arch)
	}
	r.logger.Debug("loaded stencil object",
		"path", path,
		"stencils", len(db.stencils),
		"digest", db.Digest())
	r.dbs[key] = db
	return db, nil
}

// Add registers an already parsed database under arch and opt.
func (r *Registry) Add(arch, opt string, db *Database) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs[registryKey{arch: arch, opt: opt}] = db
}
