// Package emitter renders a parsed Document back to canonical OCTAVE
// text: tri-state-filtered, comment-preserving, and idempotent.
package emitter

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/octave-lang/octave/lexer"
	"github.com/octave-lang/octave/parser"
)

// Emitter walks a Document and writes canonical OCTAVE text, following
// the teacher formatter's bytes.Buffer-plus-indent-counter shape.
type Emitter struct {
	config *Config
	buf    *bytes.Buffer
	indent int
}

// New creates an Emitter with the given configuration (DefaultConfig if nil).
func New(config *Config) *Emitter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Emitter{config: config, buf: new(bytes.Buffer)}
}

// Emit renders doc to canonical OCTAVE text, always ending in exactly
// one trailing newline.
func Emit(doc *parser.Document, config *Config) (string, error) {
	e := New(config)
	return e.Emit(doc)
}

func (e *Emitter) Emit(doc *parser.Document) (string, error) {
	e.buf.Reset()
	e.indent = 0

	if doc.Frontmatter != "" {
		e.buf.WriteString(doc.Frontmatter)
		e.buf.WriteString("\n")
	}
	if doc.GrammarSentinel != "" {
		e.buf.WriteString("OCTAVE::")
		e.buf.WriteString(doc.GrammarSentinel)
		e.buf.WriteString("\n")
	}

	e.buf.WriteString("===")
	e.buf.WriteString(doc.Name)
	e.buf.WriteString("===\n")

	if doc.Meta != nil {
		e.emitMetaBlock(doc.Meta)
	}

	if doc.HasSeparator {
		e.buf.WriteString("---\n")
	}

	var lastWasTopLevel bool
	for i, node := range doc.Body {
		if e.config.BlankLineNormalize && i > 0 && lastWasTopLevel {
			e.buf.WriteString("\n")
		}
		e.emitNode(node)
		lastWasTopLevel = true
	}

	if !e.config.StripComments {
		for _, c := range doc.TrailingComments {
			e.writeIndent()
			e.buf.WriteString("// ")
			e.buf.WriteString(c.Text)
			e.buf.WriteString("\n")
		}
	}

	e.buf.WriteString("===END===\n")

	out := e.buf.String()
	if e.config.BlankLineNormalize {
		out = normalizeBlankLines(out)
	}
	if e.config.TrailingWhitespace == TrailingWhitespaceStrip {
		out = stripTrailingWhitespace(out)
	}
	return out, nil
}

func normalizeBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blanks := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

func stripTrailingWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.Join(lines, "\n")
}

func (e *Emitter) writeIndent() {
	e.buf.WriteString(strings.Repeat("  ", e.indent))
}

// emitMetaBlock emits the META header and its non-Absent assignments;
// if every field is Absent, no META header is written at all (I2).
func (e *Emitter) emitMetaBlock(meta *parser.Block) {
	children := e.nonAbsentChildren(meta.Body)
	if len(children) == 0 {
		return
	}
	e.buf.WriteString("META:\n")
	e.indent++
	for _, n := range children {
		e.emitNode(n)
	}
	e.indent--
}

// nonAbsentChildren filters out Assignments whose value is Absent,
// keeping every other node (Sections, Blocks, Comments) unconditionally.
func (e *Emitter) nonAbsentChildren(body []parser.Node) []parser.Node {
	var out []parser.Node
	for _, n := range body {
		if asn, ok := n.(*parser.Assignment); ok {
			if _, absent := asn.Value.(parser.AbsentValue); absent {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func (e *Emitter) emitNode(node parser.Node) {
	switch n := node.(type) {
	case *parser.Section:
		e.emitSection(n)
	case *parser.Block:
		e.emitBlock(n)
	case *parser.Assignment:
		e.emitAssignment(n)
	case *parser.Comment:
		if !e.config.StripComments {
			e.writeIndent()
			e.buf.WriteString("// ")
			e.buf.WriteString(n.Text)
			e.buf.WriteString("\n")
		}
	}
}

func (e *Emitter) emitSection(sec *parser.Section) {
	e.writeIndent()
	e.buf.WriteString("§")
	e.buf.WriteString(sec.ID)
	e.buf.WriteString("::")
	if sec.Name != "" && sec.Name != sec.ID {
		e.buf.WriteString(sec.Name)
	}
	if sec.Annotation != "" {
		e.buf.WriteString("[")
		e.buf.WriteString(sec.Annotation)
		e.buf.WriteString("]")
	}
	e.buf.WriteString("\n")
	e.indent++
	for _, n := range e.nonAbsentChildren(sec.Body) {
		e.emitNode(n)
	}
	e.indent--
}

func (e *Emitter) emitBlock(b *parser.Block) {
	e.writeIndent()
	e.buf.WriteString(b.Key)
	if b.RoutingTarget != "" {
		e.buf.WriteString("[→")
		e.buf.WriteString(b.RoutingTarget)
		e.buf.WriteString("]")
	} else if b.Annotation != "" {
		e.buf.WriteString("[")
		e.buf.WriteString(b.Annotation)
		e.buf.WriteString("]")
	}
	e.buf.WriteString(":\n")
	e.indent++
	children := e.nonAbsentChildren(b.Body)
	if e.config.KeySorting {
		children = sortAssignments(children)
	}
	for _, n := range children {
		e.emitNode(n)
	}
	e.indent--
}

// sortAssignments alphabetically sorts the Assignment children of a
// block while leaving non-Assignment children (sub-blocks, comments) in
// their original relative order, interleaved back in place.
func sortAssignments(body []parser.Node) []parser.Node {
	var assignments []*parser.Assignment
	positions := map[int]bool{}
	for i, n := range body {
		if asn, ok := n.(*parser.Assignment); ok {
			assignments = append(assignments, asn)
			positions[i] = true
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Key < assignments[j].Key })

	out := make([]parser.Node, len(body))
	ai := 0
	for i, n := range body {
		if positions[i] {
			out[i] = assignments[ai]
			ai++
		} else {
			out[i] = n
		}
	}
	return out
}

func (e *Emitter) emitAssignment(asn *parser.Assignment) {
	if _, absent := asn.Value.(parser.AbsentValue); absent {
		return
	}
	if !e.config.StripComments {
		for _, c := range asn.LeadingComments {
			e.writeIndent()
			e.buf.WriteString("// ")
			e.buf.WriteString(c.Text)
			e.buf.WriteString("\n")
		}
	}

	e.writeIndent()
	e.buf.WriteString(emitKey(asn.Key))
	e.buf.WriteString("::")
	e.emitValue(asn.Value)

	if !e.config.StripComments && asn.TrailingComment != nil {
		e.buf.WriteString(" // ")
		e.buf.WriteString(asn.TrailingComment.Text)
	}
	e.buf.WriteString("\n")
}

// emitValue renders a value following the spec's value-emission rules:
// bare identifiers unquoted, reserved words always quoted, variables and
// annotations and Unicode-operator expressions unquoted, strings with
// control characters quoted with escapes, numbers in canonical form.
func (e *Emitter) emitValue(v parser.Value) {
	switch val := v.(type) {
	case parser.AbsentValue:
		// never reached directly: callers filter Absent before emitting.
	case parser.LiteralValue:
		e.emitLiteral(val)
	case parser.ListValue:
		e.emitList(val)
	case parser.InlineMapValue:
		e.emitInlineMap(val)
	case parser.HolographicValue:
		e.buf.WriteString(val.RawPattern)
	case parser.LiteralZoneValue:
		e.emitLiteralZone(val)
	case parser.SectionRefValue:
		e.buf.WriteString("§")
		e.buf.WriteString(val.Target)
	case parser.ExpressionValue:
		e.buf.WriteString(val.Raw)
	case parser.MultiWordValue:
		e.buf.WriteString(val.Text)
	}
}

func (e *Emitter) emitLiteral(lit parser.LiteralValue) {
	switch lit.Kind {
	case "string":
		e.buf.WriteString(quoteString(lit.Raw.(string)))
	case "number":
		e.buf.WriteString(formatNumber(lit.Raw))
	case "boolean":
		e.buf.WriteString(strconv.FormatBool(lit.Raw.(bool)))
	case "null":
		e.buf.WriteString("null")
	case "version":
		e.buf.WriteString(lit.Raw.(string))
	case "variable":
		e.buf.WriteString(lit.Raw.(string))
	case "identifier":
		e.emitIdentifierLike(lit.Raw.(string))
	}
}

func (e *Emitter) emitIdentifierLike(text string) {
	if lexer.IsReservedWord(text) {
		e.buf.WriteString(quoteString(text))
		return
	}
	if strings.ContainsAny(text, "<:") || lexer.IsIdentifier(text) {
		e.buf.WriteString(text)
		return
	}
	e.buf.WriteString(quoteString(text))
}

func formatNumber(raw any) string {
	switch n := raw.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", raw)
	}
}

func quoteString(s string) string {
	needsEscape := strings.ContainsAny(s, "\n\t\r\"\\")
	if !needsEscape {
		return "\"" + s + "\""
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// emitKey renders an Assignment/InlineMap key. PATTERN and REGEX are
// always quoted on emission, preserving their string-literal semantics;
// every other key is a bare identifier and is never quoted.
func emitKey(key string) string {
	if key == "PATTERN" || key == "REGEX" {
		return quoteString(key)
	}
	return key
}

func (e *Emitter) emitList(list parser.ListValue) {
	items := nonAbsentValues(list.Items)
	if len(items) == 0 {
		e.buf.WriteString("[]")
		return
	}
	if e.listNeedsMultiLine(items) {
		e.buf.WriteString("[\n")
		e.indent++
		for _, item := range items {
			e.writeIndent()
			e.emitValue(item)
			e.buf.WriteString(",\n")
		}
		e.indent--
		e.writeIndent()
		e.buf.WriteString("]")
		return
	}
	e.buf.WriteString("[")
	for i, item := range items {
		if i > 0 {
			e.buf.WriteString(", ")
		}
		e.emitValue(item)
	}
	e.buf.WriteString("]")
}

func nonAbsentValues(items []parser.Value) []parser.Value {
	var out []parser.Value
	for _, v := range items {
		if _, absent := v.(parser.AbsentValue); absent {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (e *Emitter) listNeedsMultiLine(items []parser.Value) bool {
	if len(items) >= 3 {
		allPlain := true
		for _, v := range items {
			if !isPlainScalar(v) {
				allPlain = false
				break
			}
		}
		if allPlain {
			return true
		}
	}
	for _, v := range items {
		switch x := v.(type) {
		case parser.InlineMapValue:
			if len(nonAbsentMapPairs(x.Pairs)) > 0 {
				return true
			}
		case parser.ListValue:
			return true
		case parser.LiteralValue:
			if x.Kind == "identifier" && strings.Contains(x.Raw.(string), "<") {
				return true
			}
		}
	}
	return false
}

func isPlainScalar(v parser.Value) bool {
	lit, ok := v.(parser.LiteralValue)
	return ok && lit.Kind != ""
}

func (e *Emitter) emitInlineMap(m parser.InlineMapValue) {
	pairs := nonAbsentMapPairs(m.Pairs)
	if len(pairs) == 0 {
		e.buf.WriteString("[]")
		return
	}
	e.buf.WriteString("[")
	for i, p := range pairs {
		if i > 0 {
			e.buf.WriteString(", ")
		}
		e.buf.WriteString(emitKey(p.Key))
		e.buf.WriteString("::")
		e.emitValue(p.Value)
	}
	e.buf.WriteString("]")
}

func nonAbsentMapPairs(pairs []parser.InlineMapPair) []parser.InlineMapPair {
	var out []parser.InlineMapPair
	for _, p := range pairs {
		if _, absent := p.Value.(parser.AbsentValue); absent {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *Emitter) emitLiteralZone(z parser.LiteralZoneValue) {
	fence := strings.Repeat("`", z.FenceLen)
	e.buf.WriteString("\n")
	e.indent++
	e.writeIndent()
	e.buf.WriteString(fence)
	e.buf.WriteString(z.InfoTag)
	e.buf.WriteString("\n")
	if z.Content != "" {
		for _, line := range strings.Split(z.Content, "\n") {
			e.buf.WriteString(line)
			e.buf.WriteString("\n")
		}
	}
	e.writeIndent()
	e.buf.WriteString(fence)
	e.indent--
}
