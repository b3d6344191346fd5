// Package schema extracts a SchemaDefinition from a parsed protocol
// definition document: the FIELDS block becomes a set of typed,
// constrained fields, and the POLICY block becomes routing and
// unknown-field handling rules for the validator.
package schema

import "github.com/octave-lang/octave/constraint"

// UnknownFieldsPolicy controls how the validator treats an assignment
// whose key has no matching FieldDefinition.
type UnknownFieldsPolicy string

const (
	UnknownFieldsReject UnknownFieldsPolicy = "REJECT"
	UnknownFieldsWarn    UnknownFieldsPolicy = "WARN"
	UnknownFieldsIgnore  UnknownFieldsPolicy = "IGNORE"
)

// FieldDefinition is one entry lifted from a FIELDS holographic value:
// an example, its constraint chain, and its routing target.
type FieldDefinition struct {
	Name    string
	Example string
	Chain   constraint.Chain
	Target  string
}

// PolicyDefinition is the POLICY block of a protocol definition.
type PolicyDefinition struct {
	Version       string
	UnknownFields UnknownFieldsPolicy
	Targets       []string
}

// SchemaDefinition is the fully extracted shape of one protocol
// definition document, keyed by section for the validator to look up.
type SchemaDefinition struct {
	Name   string
	Fields map[string]FieldDefinition
	Policy PolicyDefinition
}

// BuiltinTargets are routing targets every schema accepts regardless
// of what POLICY.TARGETS declares.
var BuiltinTargets = map[string]bool{
	"SELF":         true,
	"INDEXER":      true,
	"DECISION_LOG": true,
	"META":         true,
}

// AllowsTarget reports whether target is a builtin or declared in the
// schema's own POLICY.TARGETS list.
func (s *SchemaDefinition) AllowsTarget(target string) bool {
	if BuiltinTargets[target] {
		return true
	}
	for _, t := range s.Policy.Targets {
		if t == target {
			return true
		}
	}
	return false
}
