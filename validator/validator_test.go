package validator

import (
	"testing"

	"github.com/octave-lang/octave/constraint"
	"github.com/octave-lang/octave/parser"
	"github.com/octave-lang/octave/schema"
)

func mustParse(t *testing.T, src string) *parser.Document {
	t.Helper()
	doc, _, err := parser.Parse(src, "t.oct", false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func chain(t *testing.T, s string) constraint.Chain {
	t.Helper()
	c, err := constraint.Parse(s)
	if err != nil {
		t.Fatalf("constraint.Parse(%q): %v", s, err)
	}
	return c
}

func TestValidateUnvalidatedWithoutSchema(t *testing.T) {
	doc := mustParse(t, "===DOC===\n§1::INTRO\n  KEY::\"v\"\n===END===\n")
	result := Validate(doc, false, SectionSchemas{})
	if len(result.Sections) != 1 || result.Sections[0].Status != Unvalidated {
		t.Fatalf("expected UNVALIDATED section, got %+v", result.Sections)
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	doc := mustParse(t, "===DOC===\n§1::INTRO\n  OTHER::\"v\"\n===END===\n")
	def := &schema.SchemaDefinition{
		Fields: map[string]schema.FieldDefinition{
			"STATUS": {Name: "STATUS", Chain: chain(t, "REQ∧TYPE[string]")},
		},
	}
	result := Validate(doc, false, SectionSchemas{"1": def})
	if result.Sections[0].Status != Invalid {
		t.Fatalf("expected INVALID status for missing required field, got %v", result.Sections[0].Status)
	}
	if !result.Errors().HasErrors() {
		t.Fatal("expected at least one error")
	}
}

func TestValidateConstraintFailure(t *testing.T) {
	doc := mustParse(t, "===DOC===\n§1::INTRO\n  STATUS::\"deleted\"\n===END===\n")
	def := &schema.SchemaDefinition{
		Fields: map[string]schema.FieldDefinition{
			"STATUS": {Name: "STATUS", Chain: chain(t, "REQ∧ENUM[draft,published]")},
		},
	}
	result := Validate(doc, false, SectionSchemas{"1": def})
	if result.Sections[0].Status != Invalid {
		t.Fatalf("expected INVALID status for enum mismatch, got %v", result.Sections[0].Status)
	}
}

func TestValidateUnknownFieldPolicies(t *testing.T) {
	src := "===DOC===\n§1::INTRO\n  EXTRA::\"v\"\n===END===\n"

	doc := mustParse(t, src)
	rejectDef := &schema.SchemaDefinition{Policy: schema.PolicyDefinition{UnknownFields: schema.UnknownFieldsReject}}
	result := Validate(doc, false, SectionSchemas{"1": rejectDef})
	if result.Sections[0].Status != Invalid {
		t.Fatalf("expected INVALID under REJECT policy, got %v", result.Sections[0].Status)
	}

	doc2 := mustParse(t, src)
	warnDef := &schema.SchemaDefinition{Policy: schema.PolicyDefinition{UnknownFields: schema.UnknownFieldsWarn}}
	result2 := Validate(doc2, false, SectionSchemas{"1": warnDef})
	if result2.Sections[0].Status != Validated {
		t.Fatalf("expected VALIDATED (warnings only) under WARN policy, got %v", result2.Sections[0].Status)
	}
	if len(result2.Sections[0].Errors) != 1 || !result2.Sections[0].Errors[0].IsWarning() {
		t.Fatalf("expected one warning under WARN policy, got %+v", result2.Sections[0].Errors)
	}

	doc3 := mustParse(t, src)
	ignoreDef := &schema.SchemaDefinition{Policy: schema.PolicyDefinition{UnknownFields: schema.UnknownFieldsIgnore}}
	result3 := Validate(doc3, false, SectionSchemas{"1": ignoreDef})
	if result3.Sections[0].Status != Validated || len(result3.Sections[0].Errors) != 0 {
		t.Fatalf("expected silent pass under IGNORE policy, got %+v", result3.Sections[0])
	}
}

func TestValidateRoutingTarget(t *testing.T) {
	doc := mustParse(t, "===DOC===\n§1::INTRO\n  STATUS::\"published\"\n===END===\n")
	def := &schema.SchemaDefinition{
		Fields: map[string]schema.FieldDefinition{
			"STATUS": {Name: "STATUS", Chain: chain(t, "REQ"), Target: "INDEXER"},
		},
	}
	result := Validate(doc, false, SectionSchemas{"1": def})
	if result.Sections[0].Status != Validated {
		t.Fatalf("expected VALIDATED, got %v errors=%+v", result.Sections[0].Status, result.Sections[0].Errors)
	}
	if paths := result.Routing["INDEXER"]; len(paths) != 1 || paths[0] != "1.STATUS" {
		t.Fatalf("expected routing log entry for INDEXER, got %v", result.Routing)
	}
}

func TestValidateUnknownRoutingTarget(t *testing.T) {
	doc := mustParse(t, "===DOC===\n§1::INTRO\n  STATUS::\"published\"\n===END===\n")
	def := &schema.SchemaDefinition{
		Fields: map[string]schema.FieldDefinition{
			"STATUS": {Name: "STATUS", Chain: chain(t, "REQ"), Target: "NOWHERE"},
		},
	}
	result := Validate(doc, false, SectionSchemas{"1": def})
	if result.Sections[0].Status != Invalid {
		t.Fatalf("expected INVALID for unknown routing target, got %v", result.Sections[0].Status)
	}
}
