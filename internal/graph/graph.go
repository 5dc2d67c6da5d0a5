// Package graph turns source files into the unified metabolic graph.
package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/matsen/metakg/internal/ctxlog"
	"github.com/matsen/metakg/internal/model"
	"github.com/matsen/metakg/internal/storage"
)

// Parser converts one source file into canonical records.
type Parser interface {
	Parse(path string) ([]model.Node, []model.Edge, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(path string) ([]model.Node, []model.Edge, error)

// Parse calls f(path).
func (f ParserFunc) Parse(path string) ([]model.Node, []model.Edge, error) {
	return f(path)
}

// ParseError records a file that could not be parsed. It does not abort a build.
type ParseError struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %s", e.File, e.Err)
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry holding the canonical JSONL parser.
func NewRegistry() *Registry {
	r := &Registry{parsers: map[string]Parser{}}
	r.Register(".jsonl", ParserFunc(storage.ReadRecords))
	return r
}

// Register associates ext (with or without leading dot, any case) with p.
func (r *Registry) Register(ext string, p Parser) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.parsers[ext] = p
}

// For returns the parser for path, or nil if none handles its extension.
func (r *Registry) For(path string) Parser {
	return r.parsers[strings.ToLower(filepath.Ext(path))]
}

// Extensions lists the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// BuildResult summarises a build.
type BuildResult struct {
	Files       int          `json:"files"`
	Nodes       int          `json:"nodes"`
	Edges       int          `json:"edges"`
	XrefRows    int          `json:"xref_rows"`
	ParseErrors []ParseError `json:"parse_errors"`
}

// Builder parses source files and writes them to a store.
type Builder struct {
	Registry *Registry
	Store    *storage.DB
}

// NewBuilder returns a builder using the default registry.
func NewBuilder(store *storage.DB) *Builder {
	return &Builder{Registry: NewRegistry(), Store: store}
}

// Build parses every supported file under paths (files or directories, walked
// recursively in lexical order), merges nodes last-writer-wins by id, dedupes
// edges by (src, rel, dst), writes the result and rebuilds the xref index.
// Files that fail to parse are reported in ParseErrors and skipped.
func (b *Builder) Build(ctx context.Context, paths []string, wipe bool) (*BuildResult, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := b.collect(paths)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{ParseErrors: []ParseError{}}
	var nodes []model.Node
	var edges []model.Edge
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, e, err := b.Registry.For(file).Parse(file)
		if err != nil {
			pe := ParseError{File: file, Err: err.Error()}
			logger.Warn("skipping file", "file", file, "error", err)
			result.ParseErrors = append(result.ParseErrors, pe)
			continue
		}
		result.Files++
		nodes = append(nodes, n...)
		edges = append(edges, e...)
	}

	nodes = model.MergeNodes(nodes)
	edges = model.DedupeEdges(edges)

	written, err := b.Store.Write(ctx, nodes, edges, wipe)
	if err != nil {
		return nil, fmt.Errorf("writing graph: %w", err)
	}
	result.Nodes = written.Nodes
	result.Edges = written.Edges

	xrefs, err := b.Store.BuildXrefIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("building xref index: %w", err)
	}
	result.XrefRows = xrefs

	logger.Info("build complete", "files", result.Files, "nodes", result.Nodes,
		"edges", result.Edges, "parse_errors", len(result.ParseErrors))
	return result, nil
}

// collect expands paths into the sorted list of files some parser handles.
func (b *Builder) collect(paths []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	add := func(p string) {
		if b.Registry.For(p) != nil && !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("reading input %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}
