package schema

import (
	"strings"
	"testing"

	"github.com/octave-lang/octave/parser"
)

func mustParse(t *testing.T, src string) *parser.Document {
	t.Helper()
	doc, _, err := parser.Parse(src, "t.oct", false)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return doc
}

func TestExtractFields(t *testing.T) {
	src := "===PROTO===\n" +
		"FIELDS:\n" +
		"  STATUS::[published∧REQ∧ENUM[draft,published]→§SELF]\n" +
		"POLICY:\n" +
		"  VERSION::\"1.0.0\"\n" +
		"  UNKNOWN_FIELDS::WARN\n" +
		"  TARGETS::[§INDEXER, §DECISION_LOG]\n" +
		"===END===\n"
	doc := mustParse(t, src)
	def, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	field, ok := def.Fields["STATUS"]
	if !ok {
		t.Fatal("expected STATUS field extracted")
	}
	if field.Example != "published" {
		t.Fatalf("Example = %q, want published", field.Example)
	}
	if field.Target != "SELF" {
		t.Fatalf("Target = %q, want SELF", field.Target)
	}
	if !field.Chain.Required() {
		t.Fatal("expected STATUS chain to be required")
	}
	if def.Policy.Version != "1.0.0" {
		t.Fatalf("Policy.Version = %q", def.Policy.Version)
	}
	if def.Policy.UnknownFields != UnknownFieldsWarn {
		t.Fatalf("Policy.UnknownFields = %q, want WARN", def.Policy.UnknownFields)
	}
	if len(def.Policy.Targets) != 2 || def.Policy.Targets[0] != "INDEXER" {
		t.Fatalf("Policy.Targets = %v", def.Policy.Targets)
	}
}

func TestExtractInvalidUnknownFieldsFails(t *testing.T) {
	src := "===PROTO===\n" +
		"POLICY:\n" +
		"  UNKNOWN_FIELDS::NOPE\n" +
		"===END===\n"
	doc := mustParse(t, src)
	if _, err := Extract(doc); err == nil {
		t.Fatal("expected invalid UNKNOWN_FIELDS value to fail schema construction")
	}
}

func TestAllowsTargetBuiltinsAndPolicy(t *testing.T) {
	def := &SchemaDefinition{Policy: PolicyDefinition{Targets: []string{"CUSTOM"}}}
	for _, builtin := range []string{"SELF", "INDEXER", "DECISION_LOG", "META"} {
		if !def.AllowsTarget(builtin) {
			t.Fatalf("expected builtin target %q allowed", builtin)
		}
	}
	if !def.AllowsTarget("CUSTOM") {
		t.Fatal("expected policy-declared target CUSTOM allowed")
	}
	if def.AllowsTarget("UNDECLARED") {
		t.Fatal("expected undeclared target rejected")
	}
}

func TestToJSONSchema(t *testing.T) {
	doc := mustParse(t, "===PROTO===\n"+
		"FIELDS:\n"+
		"  STATUS::[published∧REQ∧ENUM[draft,published]→§SELF]\n"+
		"===END===\n")
	def, err := Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	data, err := def.MarshalJSONSchema()
	if err != nil {
		t.Fatalf("MarshalJSONSchema: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "STATUS") {
		t.Fatalf("expected STATUS property in schema, got %s", out)
	}
	if !strings.Contains(out, "required") {
		t.Fatalf("expected required array in schema, got %s", out)
	}
}
