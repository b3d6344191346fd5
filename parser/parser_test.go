package parser

import "testing"

func mustParse(t *testing.T, src string, strict bool) *Document {
	t.Helper()
	doc, _, err := Parse(src, "test.oct", strict)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return doc
}

func TestEnvelopeNameInferredWhenAbsent(t *testing.T) {
	doc := mustParse(t, "KEY::value\n", false)
	if doc.Name != "INFERRED" {
		t.Fatalf("expected inferred name, got %q", doc.Name)
	}
}

func TestEnvelopeNameFromMarker(t *testing.T) {
	doc := mustParse(t, "===ORDER===\nKEY::value\n===END===\n", false)
	if doc.Name != "ORDER" {
		t.Fatalf("expected ORDER, got %q", doc.Name)
	}
	if !doc.EnvelopeClosed {
		t.Fatalf("expected envelope closed")
	}
}

func TestMetaBlockAndSeparator(t *testing.T) {
	src := "===DOC===\nMETA:\n  AUTHOR::\"alice\"\n---\n§1::INTRO\n  KEY::value\n===END===\n"
	doc := mustParse(t, src, false)
	if doc.Meta == nil {
		t.Fatalf("expected META block")
	}
	if len(doc.Meta.Body) != 1 {
		t.Fatalf("expected 1 meta assignment, got %d", len(doc.Meta.Body))
	}
	if !doc.HasSeparator {
		t.Fatalf("expected separator recorded")
	}
	if len(doc.Body) != 1 {
		t.Fatalf("expected 1 section, got %d", len(doc.Body))
	}
	sec, ok := doc.Body[0].(*Section)
	if !ok {
		t.Fatalf("expected *Section, got %T", doc.Body[0])
	}
	if sec.ID != "1" || sec.Name != "INTRO" {
		t.Fatalf("unexpected section id/name: %q/%q", sec.ID, sec.Name)
	}
}

func TestSectionIDWithLetterSuffix(t *testing.T) {
	doc := mustParse(t, "§2b::DETAIL\n  KEY::value\n", false)
	sec := doc.Body[0].(*Section)
	if sec.ID != "2b" {
		t.Fatalf("expected id 2b, got %q", sec.ID)
	}
}

func TestSectionNameWithTrailingAnnotation(t *testing.T) {
	doc := mustParse(t, "§CONTEXT::IMPORT[\"@ns/vocab\", \"1.0.0\"]\n  KEY::value\n", false)
	sec := doc.Body[0].(*Section)
	if sec.ID != "CONTEXT" || sec.Name != "IMPORT" {
		t.Fatalf("unexpected section id/name: %q/%q", sec.ID, sec.Name)
	}
	if sec.Annotation != `"@ns/vocab", "1.0.0"` {
		t.Fatalf("unexpected annotation: %q", sec.Annotation)
	}
}

func TestBlockWithRoutingAnnotation(t *testing.T) {
	doc := mustParse(t, "RULES[->INDEXER]:\n  KEY::value\n", false)
	blk := doc.Body[0].(*Block)
	if blk.RoutingTarget != "INDEXER" {
		t.Fatalf("expected routing target INDEXER, got %q", blk.RoutingTarget)
	}
}

func TestAssignmentWithAbsentValue(t *testing.T) {
	doc := mustParse(t, "KEY::\n", false)
	asn := doc.Body[0].(*Assignment)
	if _, ok := asn.Value.(AbsentValue); !ok {
		t.Fatalf("expected AbsentValue, got %T", asn.Value)
	}
}

func TestListValue(t *testing.T) {
	doc := mustParse(t, "KEY::[1, 2, 3]\n", false)
	asn := doc.Body[0].(*Assignment)
	list, ok := asn.Value.(ListValue)
	if !ok {
		t.Fatalf("expected ListValue, got %T", asn.Value)
	}
	if len(list.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(list.Items))
	}
}

func TestInlineMapValue(t *testing.T) {
	doc := mustParse(t, "KEY::[a::1, b::2]\n", false)
	asn := doc.Body[0].(*Assignment)
	m, ok := asn.Value.(InlineMapValue)
	if !ok {
		t.Fatalf("expected InlineMapValue, got %T", asn.Value)
	}
	if len(m.Pairs) != 2 || m.Pairs[0].Key != "a" {
		t.Fatalf("unexpected pairs: %+v", m.Pairs)
	}
}

func TestNestedInlineMapWarnsInLenientStrictErrors(t *testing.T) {
	_, warnings, _ := Parse("KEY::[a::[b::1]]\n", "t.oct", false)
	found := false
	for _, w := range warnings {
		if w.Code == "W_NESTED_INLINE_MAP" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected W_NESTED_INLINE_MAP warning in lenient mode")
	}

	_, _, err := Parse("KEY::[a::[b::1]]\n", "t.oct", true)
	if err == nil {
		t.Fatalf("expected strict mode error for nested inline map")
	}
}

func TestLiteralZoneValue(t *testing.T) {
	src := "KEY::\n```go\nfunc main() {}\n```\n"
	doc := mustParse(t, src, false)
	asn := doc.Body[0].(*Assignment)
	zone, ok := asn.Value.(LiteralZoneValue)
	if !ok {
		t.Fatalf("expected LiteralZoneValue, got %T", asn.Value)
	}
	if zone.InfoTag != "go" || zone.Content != "func main() {}" {
		t.Fatalf("unexpected zone: %+v", zone)
	}
}

func TestMultiWordCoalescing(t *testing.T) {
	_, warnings, _ := Parse("KEY::hello world foo\n", "t.oct", false)
	found := false
	for _, w := range warnings {
		if w.Code == "W_MULTI_WORD_COALESCE" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected multi-word coalesce warning")
	}
}

func TestSectionReferenceValue(t *testing.T) {
	doc := mustParse(t, "KEY::§TARGET\n", false)
	asn := doc.Body[0].(*Assignment)
	ref, ok := asn.Value.(SectionRefValue)
	if !ok {
		t.Fatalf("expected SectionRefValue, got %T", asn.Value)
	}
	if ref.Target != "TARGET" {
		t.Fatalf("unexpected target %q", ref.Target)
	}
}

func TestBareFlowWarnsOutsideBrackets(t *testing.T) {
	_, warnings, _ := Parse("KEY::a -> b\n", "t.oct", false)
	found := false
	for _, w := range warnings {
		if w.Code == "W_BARE_FLOW" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected W_BARE_FLOW warning")
	}
}

func TestBareLineDroppedWarning(t *testing.T) {
	_, warnings, _ := Parse("standalone\n", "t.oct", false)
	found := false
	for _, w := range warnings {
		if w.Code == "W_BARE_LINE_DROPPED" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected W_BARE_LINE_DROPPED warning")
	}
}

func TestLeadingAndTrailingComments(t *testing.T) {
	src := "// leading note\nKEY::value // trailing note\n"
	doc := mustParse(t, src, false)
	asn := doc.Body[0].(*Assignment)
	if len(asn.LeadingComments) != 1 || asn.LeadingComments[0].Text != "leading note" {
		t.Fatalf("unexpected leading comments: %+v", asn.LeadingComments)
	}
	if asn.TrailingComment == nil || asn.TrailingComment.Text != "trailing note" {
		t.Fatalf("unexpected trailing comment: %+v", asn.TrailingComment)
	}
}

func TestFrontmatterPreservedAndLineNumbersStable(t *testing.T) {
	src := "---\ntitle: demo\n---\nKEY::value\n"
	doc := mustParse(t, src, false)
	if doc.Frontmatter == "" {
		t.Fatalf("expected frontmatter to be captured")
	}
	asn := doc.Body[0].(*Assignment)
	if asn.Line != 4 {
		t.Fatalf("expected assignment on line 4, got %d", asn.Line)
	}
}

func TestUnclosedListIsFatalInStrictMode(t *testing.T) {
	_, _, err := Parse("KEY::[1, 2\n", "t.oct", true)
	if err == nil {
		t.Fatalf("expected fatal error for unclosed list")
	}
}
