// Package model defines the canonical record types of the metabolic graph.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the type of a graph node.
type Kind string

const (
	KindCompound Kind = "compound"
	KindReaction Kind = "reaction"
	KindEnzyme   Kind = "enzyme"
	KindPathway  Kind = "pathway"
)

// Kinds lists every node kind in a stable order.
var Kinds = []Kind{KindCompound, KindReaction, KindEnzyme, KindPathway}

// Prefix returns the id prefix used for nodes of this kind.
func (k Kind) Prefix() string {
	switch k {
	case KindCompound:
		return "cpd"
	case KindReaction:
		return "rxn"
	case KindEnzyme:
		return "enz"
	case KindPathway:
		return "pwy"
	}
	return ""
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k.Prefix() != ""
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Validation errors.
var (
	ErrEmptyID         = errors.New("id is required")
	ErrEmptyKind       = errors.New("kind is required")
	ErrUnknownKind     = errors.New("unknown node kind")
	ErrEmptyRelation   = errors.New("rel is required")
	ErrUnknownRelation = errors.New("unknown relation")
	ErrEmptyEndpoint   = errors.New("src and dst are required")
)

// Direction values for a reaction's stoichiometry summary.
const (
	DirectionReversible   = "reversible"
	DirectionIrreversible = "irreversible"
)

// StoichTerm is one participant of a reaction.
type StoichTerm struct {
	ID     string  `json:"id"`
	Stoich float64 `json:"stoich"`
}

// Stoichiometry summarises a reaction's participants as recorded by the source.
type Stoichiometry struct {
	Substrates []StoichTerm `json:"substrates,omitempty"`
	Products   []StoichTerm `json:"products,omitempty"`
	Direction  string       `json:"direction,omitempty"`
}

// Reversible reports whether the reaction may carry negative flux.
// An unknown direction is treated as reversible.
func (s *Stoichiometry) Reversible() bool {
	if s == nil {
		return true
	}
	return !strings.EqualFold(s.Direction, DirectionIrreversible)
}

// Node is a compound, reaction, enzyme or pathway.
type Node struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Compound fields
	Formula string `json:"formula,omitempty"`
	Charge  *int   `json:"charge,omitempty"`

	// Enzyme fields
	ECNumber string `json:"ec_number,omitempty"`

	// Reaction fields
	Stoichiometry *Stoichiometry `json:"stoichiometry,omitempty"`

	// External database name -> external id
	Xrefs map[string]string `json:"xrefs,omitempty"`

	// Provenance
	SourceFormat string `json:"source_format,omitempty"`
	SourceFile   string `json:"source_file,omitempty"`
}

// IsCompound reports whether the node is a compound.
func (n *Node) IsCompound() bool { return n.Kind == KindCompound }

// IsReaction reports whether the node is a reaction.
func (n *Node) IsReaction() bool { return n.Kind == KindReaction }

// IsEnzyme reports whether the node is an enzyme.
func (n *Node) IsEnzyme() bool { return n.Kind == KindEnzyme }

// IsPathway reports whether the node is a pathway.
func (n *Node) IsPathway() bool { return n.Kind == KindPathway }

// Reversible reports whether a reaction node may run backwards.
// Non-reaction nodes return false.
func (n *Node) Reversible() bool {
	if !n.IsReaction() {
		return false
	}
	return n.Stoichiometry.Reversible()
}

// Validate checks that the node can be persisted.
func (n *Node) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return ErrEmptyID
	}
	if n.Kind == "" {
		return fmt.Errorf("node %s: %w", n.ID, ErrEmptyKind)
	}
	if !n.Kind.Valid() {
		return fmt.Errorf("node %s: %w: %q", n.ID, ErrUnknownKind, n.Kind)
	}
	return nil
}
