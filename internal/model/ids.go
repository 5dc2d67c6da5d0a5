package model

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// NodeID builds the canonical id "<prefix>:<db>:<ext>" for a node backed by an external id.
func NodeID(kind Kind, db, ext string) string {
	return kind.Prefix() + ":" + strings.ToLower(db) + ":" + ext
}

// SyntheticID builds "<prefix>:syn:<h>" where h is the first 8 hex digits of
// sha1(lowercase(trimmed name)).
func SyntheticID(kind Kind, name string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(name))))
	return kind.Prefix() + ":syn:" + hex.EncodeToString(sum[:])[:8]
}

// KineticParamID hashes "enzyme|reaction|substrate|source" into "kp:<16 hex>".
// Empty fields are encoded as "none".
func KineticParamID(enzymeID, reactionID, substrateID, source string) string {
	return "kp:" + hashFields(enzymeID, reactionID, substrateID, source)
}

// RegulatoryID hashes "enzyme|compound|type" into "ri:<16 hex>".
func RegulatoryID(enzymeID, compoundID, interactionType string) string {
	return "ri:" + hashFields(enzymeID, compoundID, interactionType)
}

func hashFields(fields ...string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if f == "" {
			f = "none"
		}
		parts[i] = f
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// SplitShorthand splits "<db>:<ext>" into its parts.
// The db part is lowercased; ext keeps its case and may itself contain colons.
func SplitShorthand(s string) (db, ext string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return strings.ToLower(s[:i]), s[i+1:], true
}
