// Package metakg is the entry point tying the graph store, the build driver,
// the simulator and the analysis together behind one handle.
package metakg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matsen/metakg/internal/analyze"
	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/graph"
	"github.com/matsen/metakg/internal/kinetics"
	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/simulate"
	"github.com/matsen/metakg/internal/storage"
)

// ErrNotFound is returned when an identifier resolves to no node of the
// requested kind.
var ErrNotFound = errors.New("not found")

// Options configures Open.
type Options struct {
	// DBPath is the SQLite file. Its directory is created if missing.
	DBPath string
	// Registry overrides the parsers used by Build.
	Registry *graph.Registry
}

// MetaKG owns an open store and the simulator reading from it.
// It is safe for concurrent readers.
type MetaKG struct {
	path     string
	store    *storage.DB
	sim      *simulate.Simulator
	registry *graph.Registry
}

// Open opens (creating if needed) the database at opts.DBPath.
func Open(ctx context.Context, opts Options) (*MetaKG, error) {
	if opts.DBPath == "" {
		return nil, fmt.Errorf("opening metakg: database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	store, err := storage.OpenDBContext(ctx, opts.DBPath)
	if err != nil {
		return nil, err
	}

	registry := opts.Registry
	if registry == nil {
		registry = graph.NewRegistry()
	}
	ctxlog.FromContext(ctx).Debug("opened metakg", "db", opts.DBPath)
	return &MetaKG{
		path:     opts.DBPath,
		store:    store,
		sim:      simulate.NewSimulator(store),
		registry: registry,
	}, nil
}

// Close releases the store.
func (k *MetaKG) Close() error {
	return k.store.Close()
}

// Path returns the database file.
func (k *MetaKG) Path() string { return k.path }

// Store returns the underlying graph store.
func (k *MetaKG) Store() *storage.DB { return k.store }

// Simulator returns the simulator bound to the store.
func (k *MetaKG) Simulator() *simulate.Simulator { return k.sim }

// Build parses paths into the store. With wipe set the store is cleared first.
func (k *MetaKG) Build(ctx context.Context, paths []string, wipe bool) (*graph.BuildResult, error) {
	b := &graph.Builder{Registry: k.registry, Store: k.store}
	return b.Build(ctx, paths, wipe)
}

// Resolve maps a user identifier to a node id, or ErrNotFound.
func (k *MetaKG) Resolve(ctx context.Context, query string) (string, error) {
	id, ok, err := k.store.ResolveID(ctx, query)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return id, nil
}

// Node resolves query and returns the node.
func (k *MetaKG) Node(ctx context.Context, query string) (*model.Node, error) {
	id, err := k.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	n, err := k.store.Node(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return n, nil
}

// GetCompound resolves query to a compound and returns it with its reactions.
func (k *MetaKG) GetCompound(ctx context.Context, query string) (*storage.CompoundDetail, error) {
	id, err := k.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	d, err := k.store.CompoundDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil || !d.IsCompound() {
		return nil, fmt.Errorf("%w: no compound %q", ErrNotFound, query)
	}
	return d, nil
}

// GetReaction resolves query to a reaction and returns its participants and modifiers.
func (k *MetaKG) GetReaction(ctx context.Context, query string) (*storage.ReactionDetail, error) {
	id, err := k.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	d, err := k.store.ReactionDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: no reaction %q", ErrNotFound, query)
	}
	return d, nil
}

// FindPath resolves both ends and searches for a shortest metabolic path.
// maxHops <= 0 selects storage.DefaultMaxHops. A nil path with a nil error
// means the ends are not connected within maxHops.
func (k *MetaKG) FindPath(ctx context.Context, from, to string, maxHops int) (*storage.Path, error) {
	a, err := k.Resolve(ctx, from)
	if err != nil {
		return nil, err
	}
	b, err := k.Resolve(ctx, to)
	if err != nil {
		return nil, err
	}
	if maxHops <= 0 {
		maxHops = storage.DefaultMaxHops
	}
	return k.store.FindShortestPath(ctx, a, b, maxHops)
}

// Stats summarises the store.
func (k *MetaKG) Stats(ctx context.Context) (*storage.Stats, error) {
	return k.store.Stats(ctx)
}

// Analyze runs the topology analysis.
func (k *MetaKG) Analyze(ctx context.Context, topN int) (*analyze.Report, error) {
	return analyze.Run(ctx, k.store, topN)
}

// SeedResult counts the rows written by SeedKinetics.
type SeedResult struct {
	KineticParams          int `json:"kinetic_params"`
	RegulatoryInteractions int `json:"regulatory_interactions"`
}

// SeedKinetics writes the curated kinetic parameters for reactions present in the store.
func (k *MetaKG) SeedKinetics(ctx context.Context, force bool) (*SeedResult, error) {
	params, regs, err := kinetics.Seed(ctx, k.store, force)
	if err != nil {
		return nil, err
	}
	return &SeedResult{KineticParams: params, RegulatoryInteractions: regs}, nil
}

// Export writes every node and edge to path as canonical JSONL.
func (k *MetaKG) Export(ctx context.Context, path string) (int, int, error) {
	nodes, err := k.store.AllNodes(ctx, "")
	if err != nil {
		return 0, 0, err
	}
	edges, err := k.store.AllEdges(ctx)
	if err != nil {
		return 0, 0, err
	}
	if err := storage.WriteRecords(path, nodes, edges); err != nil {
		return 0, 0, err
	}
	return len(nodes), len(edges), nil
}

// Names returns a display-name lookup for rendering. Unknown ids map to "".
func (k *MetaKG) Names(ctx context.Context) simulate.NameFunc {
	cache := map[string]string{}
	return func(id string) string {
		if name, ok := cache[id]; ok {
			return name
		}
		var name string
		if n, err := k.store.Node(ctx, id); err == nil && n != nil {
			name = n.Name
		}
		cache[id] = name
		return name
	}
}
