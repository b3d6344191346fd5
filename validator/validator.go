// Package validator applies extracted schemas to a parsed Document:
// required-field checks, per-field constraint chains, unknown-field
// policy, and routing-target verification. Every section's outcome is
// explicit — VALIDATED, INVALID, or UNVALIDATED — so a missing schema
// never reads as a silent pass.
package validator

import (
	"fmt"

	"github.com/octave-lang/octave/octaveerr"
	"github.com/octave-lang/octave/parser"
	"github.com/octave-lang/octave/schema"
)

// Status is the per-section validation outcome (I5: never silent).
type Status string

const (
	Validated  Status = "VALIDATED"
	Invalid    Status = "INVALID"
	Unvalidated Status = "UNVALIDATED"
)

// SectionResult is the validation outcome for one section or the
// document's top level.
type SectionResult struct {
	Key    string
	Status Status
	Errors octaveerr.List
}

// RoutingLog records which field paths were routed to which target,
// built up over the course of a Validate call.
type RoutingLog map[string][]string

// Result is the full output of Validate.
type Result struct {
	Sections []SectionResult
	Routing  RoutingLog
}

// Errors flattens every section's errors into one list.
func (r Result) Errors() octaveerr.List {
	var out octaveerr.List
	for _, s := range r.Sections {
		out = append(out, s.Errors...)
	}
	return out
}

// SectionSchemas maps a section key to the schema governing it.
type SectionSchemas map[string]*schema.SchemaDefinition

// Validate checks doc against sectionSchemas, per §4.6: each section is
// looked up by key; a section without a matching schema is recorded as
// UNVALIDATED rather than skipped. strict does not change the result:
// errors are collected either way, and the caller decides how to react
// to Result.Errors().HasErrors().
func Validate(doc *parser.Document, strict bool, sectionSchemas SectionSchemas) Result {
	result := Result{Routing: RoutingLog{}}

	for _, node := range doc.Body {
		sec, ok := node.(*parser.Section)
		if !ok {
			continue
		}
		result.Sections = append(result.Sections, validateSection(doc, sec, sectionSchemas, result.Routing))
	}

	if doc.Meta != nil {
		if def, ok := sectionSchemas["META"]; ok {
			result.Sections = append(result.Sections, validateBlock(doc, "META", doc.Meta.Body, def, result.Routing))
		}
	}

	return result
}

func validateSection(doc *parser.Document, sec *parser.Section, schemas SectionSchemas, routing RoutingLog) SectionResult {
	def, ok := schemas[sec.ID]
	if !ok {
		def, ok = schemas[sec.Name]
	}
	if !ok {
		return SectionResult{Key: sec.ID, Status: Unvalidated}
	}
	return validateBlock(doc, sec.ID, sec.Body, def, routing)
}

func validateBlock(doc *parser.Document, key string, body []parser.Node, def *schema.SchemaDefinition, routing RoutingLog) SectionResult {
	var errs octaveerr.List
	seen := map[string]bool{}

	for fieldName, field := range def.Fields {
		asn := findAssignment(body, fieldName)
		if asn == nil {
			if field.Chain.Required() {
				errs = append(errs, octaveerr.New(octaveerr.PhaseValidator, octaveerr.E007,
					fmt.Sprintf("required field %q missing", fieldName),
					octaveerr.Location{File: doc.Name}, octaveerr.Error).WithFieldPath(key+"."+fieldName))
			}
			continue
		}
		value := literalRawValue(asn.Value)
		if err := field.Chain.Validate(value); err != nil {
			errs = append(errs, octaveerr.New(octaveerr.PhaseValidator, octaveerr.E007,
				fmt.Sprintf("field %q: %v", fieldName, err),
				octaveerr.Location{File: doc.Name, Line: asn.Pos.Line, Column: asn.Pos.Column},
				octaveerr.Error).WithFieldPath(key+"."+fieldName))
		}
		if field.Target != "" {
			path := key + "." + fieldName
			routing[field.Target] = append(routing[field.Target], path)
			if !def.AllowsTarget(field.Target) {
				errs = append(errs, octaveerr.New(octaveerr.PhaseValidator, octaveerr.E009,
					fmt.Sprintf("unknown routing target %q for field %q", field.Target, fieldName),
					octaveerr.Location{File: doc.Name, Line: asn.Pos.Line, Column: asn.Pos.Column},
					octaveerr.Error).WithFieldPath(path))
			}
		}
	}

	for _, node := range body {
		asn, ok := node.(*parser.Assignment)
		if !ok {
			continue
		}
		seen[asn.Key] = true
		if _, known := def.Fields[asn.Key]; known {
			continue
		}
		path := key + "." + asn.Key
		switch def.Policy.UnknownFields {
		case schema.UnknownFieldsReject:
			errs = append(errs, octaveerr.New(octaveerr.PhaseValidator, octaveerr.E007,
				fmt.Sprintf("unknown field %q", asn.Key),
				octaveerr.Location{File: doc.Name, Line: asn.Pos.Line, Column: asn.Pos.Column},
				octaveerr.Error).WithFieldPath(path))
		case schema.UnknownFieldsWarn:
			errs = append(errs, octaveerr.New(octaveerr.PhaseValidator, octaveerr.W001,
				fmt.Sprintf("unknown field %q", asn.Key),
				octaveerr.Location{File: doc.Name, Line: asn.Pos.Line, Column: asn.Pos.Column},
				octaveerr.Warning).WithFieldPath(path))
		case schema.UnknownFieldsIgnore:
			// silent skip, per policy
		}
	}

	status := Validated
	if errs.HasErrors() {
		status = Invalid
	}
	return SectionResult{Key: key, Status: status, Errors: errs}
}

func findAssignment(body []parser.Node, key string) *parser.Assignment {
	for _, node := range body {
		if asn, ok := node.(*parser.Assignment); ok && asn.Key == key {
			return asn
		}
	}
	return nil
}

// literalRawValue converts a parser.Value into the plain Go value
// constraint.Chain.Validate expects: nil for Absent, the underlying Go
// value for a LiteralValue, a []any for a ListValue.
func literalRawValue(v parser.Value) any {
	switch val := v.(type) {
	case parser.AbsentValue:
		return nil
	case parser.LiteralValue:
		return val.Raw
	case parser.ListValue:
		items := make([]any, 0, len(val.Items))
		for _, item := range val.Items {
			items = append(items, literalRawValue(item))
		}
		return items
	default:
		return v
	}
}
