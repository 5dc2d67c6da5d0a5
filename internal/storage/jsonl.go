package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/metakg/internal/model"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// Record types in a canonical graph file.
const (
	RecordNode = "node"
	RecordEdge = "edge"
)

// Record is one line of a canonical graph file.
type Record struct {
	Type string      `json:"type"`
	Node *model.Node `json:"node,omitempty"`
	Edge *model.Edge `json:"edge,omitempty"`
}

// ReadRecords reads nodes and edges from a canonical JSONL graph file.
func ReadRecords(path string) ([]model.Node, []model.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening graph file: %w", err)
	}
	defer f.Close()

	var nodes []model.Node
	var edges []model.Edge
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		switch {
		case rec.Type == RecordNode && rec.Node != nil:
			nodes = append(nodes, *rec.Node)
		case rec.Type == RecordEdge && rec.Edge != nil:
			edges = append(edges, *rec.Edge)
		default:
			return nil, nil, fmt.Errorf("parsing line %d: unknown or empty record type %q", lineNum, rec.Type)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading graph file: %w", err)
	}

	return nodes, edges, nil
}

// WriteRecords writes nodes then edges to a JSONL file, replacing existing content.
func WriteRecords(path string, nodes []model.Node, edges []model.Edge) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating graph file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := range nodes {
		if err := enc.Encode(Record{Type: RecordNode, Node: &nodes[i]}); err != nil {
			return fmt.Errorf("encoding node %s: %w", nodes[i].ID, err)
		}
	}
	for i := range edges {
		if err := enc.Encode(Record{Type: RecordEdge, Edge: &edges[i]}); err != nil {
			return fmt.Errorf("encoding edge %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing graph file: %w", err)
	}
	return f.Close()
}
