package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteReadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	nodes, edges := testGraph()

	if err := WriteRecords(path, nodes, edges); err != nil {
		t.Fatalf("WriteRecords failed: %v", err)
	}
	gotNodes, gotEdges, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if diff := cmp.Diff(nodes, gotNodes); diff != "" {
		t.Errorf("nodes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(edges, gotEdges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecords_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	content := `{"type":"node","node":{"id":"cpd:a","kind":"compound","name":"A"}}

{"type":"edge","edge":{"src":"cpd:a","rel":"SUBSTRATE_OF","dst":"rxn:r"}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	nodes, edges, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords failed: %v", err)
	}
	if len(nodes) != 1 || len(edges) != 1 {
		t.Errorf("got %d nodes, %d edges", len(nodes), len(edges))
	}
}

func TestReadRecords_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed json", `{"type":"node",`},
		{"unknown type", `{"type":"gene"}`},
		{"node type without node", `{"type":"node"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "graph.jsonl")
			if err := os.WriteFile(path, []byte(tt.content+"\n"), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := ReadRecords(path); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestReadRecords_MissingFile(t *testing.T) {
	if _, _, err := ReadRecords("/nonexistent/graph.jsonl"); err == nil {
		t.Error("expected error for missing file")
	}
}
