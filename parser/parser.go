// Package parser turns an OCTAVE token stream into a Document AST.
package parser

import (
	"strconv"
	"strings"

	"github.com/octave-lang/octave/lexer"
	"github.com/octave-lang/octave/octaveerr"
)

const maxNestingDepth = 100
const deepNestingWarnThreshold = 5

// Parser holds cursor state for one parse invocation. It is not safe to
// share across goroutines; each call to Parse creates its own.
type Parser struct {
	tokens         []lexer.Token
	current        int
	file           string
	strict         bool
	warnings       octaveerr.List
	blockDepth     int // section/block nesting; E_MAX_NESTING_EXCEEDED guard, no warning
	bracketDepth   int // '[' nesting, what W_DEEP_NESTING/E_MAX_NESTING_EXCEEDED measure
	warnedDeepLine map[int]bool
}

// Parse tokenizes and parses text into a Document. Strict mode raises on
// the first structural error; lenient mode accumulates warnings and
// recovers at the next statement boundary (panic-mode recovery, as in
// the teacher's recursive-descent parser).
func Parse(text, file string, strict bool) (*Document, octaveerr.List, error) {
	stripped, frontmatter, ferr := stripFrontmatter(text, file)
	if ferr != nil {
		return nil, nil, *ferr
	}

	tokens, _, lexWarnings, lexErr := lexer.Tokenize(stripped, file, !strict)
	if lexErr != nil {
		return nil, nil, octaveerr.New(octaveerr.PhaseParser, octaveerr.ETokenize,
			lexErr.Error(), octaveerr.Location{File: file}, octaveerr.Fatal).WithRelated(lexErr.(octaveerr.CompilerError))
	}

	p := &Parser{tokens: tokens, file: file, strict: strict, warnedDeepLine: map[int]bool{}}
	p.warnings = append(p.warnings, lexWarnings...)

	doc, err := p.parseDocument()
	if err != nil {
		return doc, p.warnings, *err
	}
	doc.Frontmatter = frontmatter
	return doc, p.warnings, nil
}

// --- token cursor ---------------------------------------------------------

func (p *Parser) peek() lexer.Token  { return p.tokens[p.current] }
func (p *Parser) previous() lexer.Token { return p.tokens[p.current-1] }
func (p *Parser) isAtEnd() bool      { return p.peek().Kind == lexer.EOF }

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(kind lexer.Kind) bool {
	if p.isAtEnd() {
		return kind == lexer.EOF
	}
	return p.peek().Kind == kind
}

func (p *Parser) match(kinds ...lexer.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			p.advance()
			return true
		}
	}
	return false
}

func (p *Parser) skipNewlines() {
	for p.check(lexer.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) fatal(code, message string) *octaveerr.CompilerError {
	tok := p.peek()
	e := octaveerr.New(octaveerr.PhaseParser, code, message,
		octaveerr.Location{File: p.file, Line: tok.Line, Column: tok.Column}, octaveerr.Fatal)
	return &e
}

func (p *Parser) warn(code, message string) {
	tok := p.peek()
	p.warnings = append(p.warnings, octaveerr.New(octaveerr.PhaseParser, code, message,
		octaveerr.Location{File: p.file, Line: tok.Line, Column: tok.Column}, octaveerr.Warning))
}

func (p *Parser) warnAt(code, message string, tok lexer.Token) {
	p.warnings = append(p.warnings, octaveerr.New(octaveerr.PhaseParser, code, message,
		octaveerr.Location{File: p.file, Line: tok.Line, Column: tok.Column}, octaveerr.Warning))
}

// synchronize recovers from a parse error by skipping to the next
// NEWLINE (panic-mode recovery, following the teacher's parser).
func (p *Parser) synchronize() {
	for !p.isAtEnd() && !p.check(lexer.NEWLINE) {
		p.advance()
	}
	if p.check(lexer.NEWLINE) {
		p.advance()
	}
}

// --- document --------------------------------------------------------------

func (p *Parser) parseDocument() (*Document, *octaveerr.CompilerError) {
	doc := &Document{Name: "INFERRED"}

	if p.check(lexer.GRAMMAR_SENTINEL) {
		tok := p.advance()
		doc.GrammarSentinel, _ = tok.Value.(string)
		p.skipNewlines()
	}

	if p.check(lexer.ENVELOPE_START) {
		tok := p.advance()
		doc.Name, _ = tok.Value.(string)
		p.skipNewlines()
	}

	if p.check(lexer.IDENTIFIER) && p.peek().Lexeme == "META" {
		block, err := p.parseBlock()
		if err != nil {
			if p.strict {
				return doc, err
			}
			p.warnings = append(p.warnings, *err)
			p.synchronize()
		} else {
			doc.Meta = block
			p.warnDuplicateMetaKeys(block)
		}
		p.skipNewlines()
	}

	if p.check(lexer.SEPARATOR) {
		p.advance()
		doc.HasSeparator = true
		p.skipNewlines()
	}

	for !p.isAtEnd() && !p.check(lexer.ENVELOPE_END) {
		node, err := p.parseNode(0)
		if err != nil {
			if p.strict {
				return doc, err
			}
			p.warnings = append(p.warnings, *err)
			p.synchronize()
			continue
		}
		if node == nil {
			continue
		}
		if c, ok := node.(*Comment); ok && p.isAtEnd() {
			doc.TrailingComments = append(doc.TrailingComments, c)
			continue
		}
		doc.Body = append(doc.Body, node)
	}

	if p.check(lexer.ENVELOPE_END) {
		p.advance()
		doc.EnvelopeClosed = true
	}

	return doc, nil
}

// --- body nodes --------------------------------------------------------------

// parseNode parses one body-level node at the given indent column (0 for
// top level). parentCol is the parent's column; below the top level,
// child content must start strictly deeper; the caller is responsible for checking
// dedent before calling parseNode again.
func (p *Parser) parseNode(parentCol int) (Node, *octaveerr.CompilerError) {
	p.skipNewlines()
	if p.isAtEnd() || p.check(lexer.ENVELOPE_END) {
		return nil, nil
	}
	if p.peek().Column <= parentCol && parentCol > 0 {
		return nil, nil
	}

	// Comments outside the child indent terminate the block, so each
	// comment is only consumed while it (and whatever follows it) still
	// belongs to this body; a dedent hands control straight back to
	// parseBody without advancing past the comment.
	var leading []*Comment
	for p.check(lexer.COMMENT) && p.peek().Column > parentCol {
		tok := p.advance()
		leading = append(leading, &Comment{Pos: Pos{tok.Line, tok.Column}, Text: tok.Lexeme})
		p.skipNewlines()
	}
	if p.isAtEnd() || p.check(lexer.ENVELOPE_END) || (p.peek().Column <= parentCol && parentCol > 0) {
		if len(leading) == 1 {
			return leading[0], nil
		}
		return nil, nil
	}

	switch {
	case p.check(lexer.SECTION):
		sec, err := p.parseSection(parentCol)
		return sec, err
	case p.check(lexer.FENCE_OPEN):
		zone, err := p.parseLiteralZone()
		if err != nil {
			return nil, err
		}
		return &Assignment{Pos: Pos{zone.Line, zone.Column}, Key: "", Value: zone, LeadingComments: leading}, nil
	case p.check(lexer.IDENTIFIER) || p.check(lexer.VARIABLE):
		return p.parseIdentifierLed(parentCol, leading)
	default:
		tok := p.advance()
		p.warnAt(octaveerr.WBareLineDropped, "bare token dropped: "+tok.Lexeme, tok)
		return nil, nil
	}
}

// parseIdentifierLed disambiguates Section/Block/Assignment/bare-line,
// all of which start with an IDENTIFIER token.
func (p *Parser) parseIdentifierLed(parentCol int, leading []*Comment) (Node, *octaveerr.CompilerError) {
	start := p.peek()
	key := start.Lexeme
	p.advance()

	annotation := p.maybeConstructorAnnotation()

	switch {
	case p.check(lexer.ASSIGN):
		p.advance()
		val, err := p.parseValue(start.Column)
		if err != nil {
			return nil, err
		}
		asn := &Assignment{Pos: Pos{start.Line, start.Column}, Key: key, Value: val, LeadingComments: leading}
		p.maybeAttachTrailingComment(asn)
		return asn, nil
	case p.check(lexer.BLOCK):
		p.advance()
		block := &Block{Pos: Pos{start.Line, start.Column}, Key: key, Annotation: annotation}
		if strings.HasPrefix(annotation, "→") {
			block.RoutingTarget = strings.TrimPrefix(annotation, "→")
		}
		p.skipNewlines()
		body, err := p.parseBody(start.Column)
		if err != nil {
			return nil, err
		}
		block.Body = body
		return block, nil
	default:
		p.warnAt(octaveerr.WBareLineDropped, "bare identifier dropped: "+key, start)
		for !p.isAtEnd() && !p.check(lexer.NEWLINE) {
			p.advance()
		}
		return nil, nil
	}
}

// parseBlock parses the META block specifically: `META:` followed by an
// indented body of assignments. It is the same shape as the Block arm of
// parseIdentifierLed, pulled out standalone so parseDocument can call it
// before any ordinary body parsing starts.
func (p *Parser) parseBlock() (*Block, *octaveerr.CompilerError) {
	tok := p.advance() // IDENTIFIER "META"
	key := tok.Lexeme
	if !p.match(lexer.BLOCK) {
		return nil, p.fatal(octaveerr.E001, "expected ':' after "+key)
	}
	block := &Block{Pos: Pos{tok.Line, tok.Column}, Key: key}
	p.skipNewlines()
	body, err := p.parseBody(tok.Column)
	if err != nil {
		return nil, err
	}
	block.Body = body
	return block, nil
}

// warnDuplicateMetaKeys emits one W_DUPLICATE_KEY warning per repeated
// META key, listing every line it occurred on. Every occurrence stays in
// block.Body in source order; none is removed here.
func (p *Parser) warnDuplicateMetaKeys(block *Block) {
	lines := map[string][]int{}
	for _, n := range block.Body {
		asn, ok := n.(*Assignment)
		if !ok {
			continue
		}
		lines[asn.Key] = append(lines[asn.Key], asn.Line)
	}
	for key, ls := range lines {
		if len(ls) < 2 {
			continue
		}
		msg := "duplicate META key " + key + " at lines"
		for _, l := range ls {
			msg += " " + strconv.Itoa(l)
		}
		p.warnings = append(p.warnings, octaveerr.New(octaveerr.PhaseParser, octaveerr.WDuplicateKey, msg,
			octaveerr.Location{File: p.file, Line: ls[len(ls)-1]}, octaveerr.Warning))
	}
}

// parseSection parses `§<id>::<name>[annotation]` with an indented body.
func (p *Parser) parseSection(parentCol int) (*Section, *octaveerr.CompilerError) {
	tok := p.advance() // SECTION
	sec := &Section{Pos: Pos{tok.Line, tok.Column}}

	id, err := p.parseSectionID()
	if err != nil {
		return nil, err
	}
	sec.ID = id

	if !p.match(lexer.ASSIGN) {
		return nil, p.fatal(octaveerr.E001, "expected '::' after section id")
	}

	if p.check(lexer.IDENTIFIER) && !p.check(lexer.NEWLINE) {
		sec.Name = p.advance().Lexeme
	} else {
		sec.Name = id
	}
	sec.Annotation = p.maybeConstructorAnnotation()

	p.skipNewlines()
	body, berr := p.parseBody(tok.Column)
	if berr != nil {
		return nil, berr
	}
	sec.Body = body
	return sec, nil
}

// parseSectionID handles both numeric-with-suffix (`2b`) and identifier
// section ids. A NUMBER immediately followed by an adjacent IDENTIFIER
// (no separating whitespace, same line) coalesces into one id string.
func (p *Parser) parseSectionID() (string, *octaveerr.CompilerError) {
	if p.check(lexer.NUMBER) {
		numTok := p.advance()
		id := numTok.Lexeme
		if p.check(lexer.IDENTIFIER) && p.peek().Line == numTok.Line && p.peek().Start == numTok.End {
			id += p.advance().Lexeme
		}
		return id, nil
	}
	if p.check(lexer.IDENTIFIER) {
		return p.advance().Lexeme, nil
	}
	return "", p.fatal(octaveerr.E005, "expected section id")
}

// parseBody parses the indented children of a section/block: every node
// whose first token's column is strictly greater than parentCol.
func (p *Parser) parseBody(parentCol int) ([]Node, *octaveerr.CompilerError) {
	p.blockDepth++
	defer func() { p.blockDepth-- }()
	if p.blockDepth >= maxNestingDepth {
		return nil, p.fatal(octaveerr.EMaxNestingExceeded, "nesting depth exceeded")
	}

	var body []Node
	for {
		p.skipNewlines()
		if p.isAtEnd() || p.check(lexer.ENVELOPE_END) {
			break
		}
		if p.peek().Column <= parentCol {
			break
		}
		node, err := p.parseNode(parentCol)
		if err != nil {
			if p.strict {
				return body, err
			}
			p.warnings = append(p.warnings, *err)
			p.synchronize()
			continue
		}
		if node == nil {
			continue
		}
		body = append(body, node)
	}
	return body, nil
}

// maybeConstructorAnnotation converts an adjacent `[args]` (no
// whitespace between the preceding token and `[`) into its bracket
// contents captured verbatim, dropping COMMENT/NEWLINE structural noise.
func (p *Parser) maybeConstructorAnnotation() string {
	if !p.check(lexer.LIST_START) {
		return ""
	}
	if p.peek().Start != p.previous().End {
		return "" // whitespace between identifier and '[': not an annotation
	}
	p.advance() // '['
	var b strings.Builder
	depth := 1
	prev := p.previous()
	for depth > 0 && !p.isAtEnd() {
		tok := p.peek()
		if tok.Kind != lexer.COMMENT && tok.Kind != lexer.NEWLINE && !(tok.Kind == lexer.LIST_END && depth == 1) {
			if tok.Line == prev.Line && tok.Start > prev.End {
				b.WriteString(strings.Repeat(" ", tok.Start-prev.End))
			}
			prev = tok
		}
		switch tok.Kind {
		case lexer.LIST_START:
			depth++
			b.WriteString(tok.Lexeme)
		case lexer.LIST_END:
			depth--
			if depth > 0 {
				b.WriteString(tok.Lexeme)
			}
		case lexer.COMMENT, lexer.NEWLINE:
			// dropped, structural noise only
		default:
			if tok.Lexeme != "" {
				b.WriteString(tok.Lexeme)
			} else if s, ok := tok.Value.(string); ok {
				b.WriteString(s)
			}
		}
		p.advance()
	}
	return b.String()
}

func (p *Parser) maybeAttachTrailingComment(asn *Assignment) {
	if p.check(lexer.COMMENT) && p.peek().Line == asn.Line {
		tok := p.advance()
		asn.TrailingComment = &Comment{Pos: Pos{tok.Line, tok.Column}, Text: tok.Lexeme, Trailing: true}
	}
}

// --- values ------------------------------------------------------------

func (p *Parser) parseValue(keyColumn int) (Value, *octaveerr.CompilerError) {
	p.skipOptionalNewlineBeforeZone()

	tok := p.peek()
	switch tok.Kind {
	case lexer.NEWLINE, lexer.ENVELOPE_END:
		return AbsentValue{}, nil
	case lexer.LIST_START:
		return p.parseBracketed()
	case lexer.FENCE_OPEN:
		return p.parseLiteralZone()
	case lexer.SECTION:
		p.advance()
		target, err := p.parseSectionID()
		if err != nil {
			return nil, err
		}
		return SectionRefValue{Pos: Pos{tok.Line, tok.Column}, Target: target}, nil
	case lexer.FLOW, lexer.SYNTHESIS, lexer.AT, lexer.CONCAT, lexer.TENSION, lexer.CONSTRAINT, lexer.ALTERNATIVE:
		return p.parseExpression(false)
	}

	first, err := p.parseAtomValue()
	if err != nil {
		return nil, err
	}

	if p.isExpressionLead() {
		raw, err := p.rawValueText(first)
		if err != nil {
			return nil, err
		}
		return p.parseExpression(true, raw)
	}

	if p.isColonPathLead() {
		return p.parseColonPath(first)
	}

	if p.isValueLead() {
		return p.parseMultiWord(first)
	}

	return first, nil
}

func (p *Parser) skipOptionalNewlineBeforeZone() {
	if p.check(lexer.NEWLINE) {
		save := p.current
		p.advance()
		p.skipNewlines()
		if p.check(lexer.FENCE_OPEN) {
			return
		}
		p.current = save
	}
}

// parseAtomValue parses one value token into a LiteralValue/variable.
func (p *Parser) parseAtomValue() (Value, *octaveerr.CompilerError) {
	tok := p.peek()
	switch tok.Kind {
	case lexer.STRING:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "string", Raw: tok.Value}, nil
	case lexer.NUMBER:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "number", Raw: tok.Value}, nil
	case lexer.BOOLEAN:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "boolean", Raw: tok.Value}, nil
	case lexer.NULL:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "null", Raw: nil}, nil
	case lexer.VERSION:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "version", Raw: tok.Value}, nil
	case lexer.VARIABLE:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "variable", Raw: tok.Value}, nil
	case lexer.IDENTIFIER:
		p.advance()
		return LiteralValue{Pos: Pos{tok.Line, tok.Column}, Kind: "identifier", Raw: tok.Lexeme}, nil
	}
	return nil, p.fatal(octaveerr.E005, "expected a value")
}

func (p *Parser) isValueLead() bool {
	switch p.peek().Kind {
	case lexer.STRING, lexer.NUMBER, lexer.BOOLEAN, lexer.NULL, lexer.VERSION, lexer.VARIABLE, lexer.IDENTIFIER:
		return true
	}
	return false
}

func (p *Parser) isExpressionLead() bool {
	switch p.peek().Kind {
	case lexer.FLOW, lexer.SYNTHESIS, lexer.AT, lexer.CONCAT, lexer.TENSION, lexer.CONSTRAINT, lexer.ALTERNATIVE:
		return true
	}
	return false
}

func (p *Parser) isColonPathLead() bool {
	return p.check(lexer.BLOCK) && p.peekNext().Kind == lexer.IDENTIFIER
}

func (p *Parser) peekNext() lexer.Token {
	if p.current+1 >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current+1]
}

// rawValueText renders an already-parsed atom back to its source text,
// used as the seed when an expression operator follows it.
func (p *Parser) rawValueText(v Value) (string, *octaveerr.CompilerError) {
	lit, ok := v.(LiteralValue)
	if !ok {
		return "", p.fatal(octaveerr.E005, "expected a simple value before an expression operator")
	}
	switch lit.Kind {
	case "string":
		return lit.Raw.(string), nil
	case "number":
		return numberLexeme(lit.Raw), nil
	case "identifier":
		return lit.Raw.(string), nil
	case "variable":
		return lit.Raw.(string), nil
	case "version":
		return lit.Raw.(string), nil
	case "boolean":
		return strconv.FormatBool(lit.Raw.(bool)), nil
	default:
		return "", nil
	}
}

func numberLexeme(v any) string {
	switch n := v.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return ""
	}
}

var operatorGlyph = map[lexer.Kind]string{
	lexer.FLOW: "→", lexer.SYNTHESIS: "⊕", lexer.AT: "@", lexer.CONCAT: "⧺",
	lexer.TENSION: "⇌", lexer.CONSTRAINT: "∧", lexer.ALTERNATIVE: "∨",
}

// parseExpression accumulates an operator-rich value, preserving the
// original Unicode glyphs. When seeded, seed[0] is the text of an atom
// already parsed before the operator. Outside `[...]`, the first FLOW and
// the first CONSTRAINT of the expression each warn once.
func (p *Parser) parseExpression(seeded bool, seed ...string) (Value, *octaveerr.CompilerError) {
	start := p.peek()
	var b strings.Builder
	if seeded && len(seed) == 1 {
		b.WriteString(seed[0])
	}
	tensionCount := 0
	bareFlowWarned := false
	bareConstraintWarned := false

	for {
		tok := p.peek()
		switch tok.Kind {
		case lexer.NEWLINE, lexer.COMMA, lexer.LIST_END, lexer.EOF, lexer.ENVELOPE_END:
			goto done
		case lexer.FLOW, lexer.SYNTHESIS, lexer.AT, lexer.CONCAT, lexer.TENSION, lexer.CONSTRAINT, lexer.ALTERNATIVE:
			if tok.Kind == lexer.FLOW && !bareFlowWarned && p.bracketDepth == 0 {
				p.warn(octaveerr.WBareFlow, "bare '→' outside brackets")
				bareFlowWarned = true
			}
			if tok.Kind == lexer.CONSTRAINT && !bareConstraintWarned && p.bracketDepth == 0 {
				p.warn(octaveerr.WConstraintOutsideBrackets, "bare '∧' outside brackets")
				bareConstraintWarned = true
			}
			if tok.Kind == lexer.TENSION {
				tensionCount++
				if tensionCount > 1 {
					p.warn(octaveerr.WChainedTension, "more than one '⇌' in a single expression")
				}
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(operatorGlyph[tok.Kind])
			p.advance()
		default:
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(tok.Lexeme)
			p.advance()
		}
	}
done:
	return ExpressionValue{Pos: Pos{start.Line, start.Column}, Raw: b.String()}, nil
}

// parseColonPath handles `HERMES:API_TIMEOUT`-style identifier chains.
func (p *Parser) parseColonPath(first Value) (Value, *octaveerr.CompilerError) {
	lit := first.(LiteralValue)
	parts := []string{lit.Raw.(string)}
	for p.check(lexer.BLOCK) && p.peekNext().Kind == lexer.IDENTIFIER {
		p.advance() // ':'
		parts = append(parts, p.advance().Lexeme)
	}
	text := strings.Join(parts, ":")
	if ann := p.maybeConstructorAnnotation(); ann != "" {
		text += "<" + ann + ">"
	}
	return LiteralValue{Pos: lit.Pos, Kind: "identifier", Raw: text}, nil
}

// parseMultiWord coalesces adjacent value-leading tokens into one
// space-joined string, per spec's multi-word coalescing rule, warning
// once per coalescing event.
func (p *Parser) parseMultiWord(first Value) (Value, *octaveerr.CompilerError) {
	parts := []string{valueText(first)}
	pos := valuePos(first)
	coalesced := false
	for p.isValueLead() {
		coalesced = true
		next, err := p.parseAtomValue()
		if err != nil {
			return nil, err
		}
		parts = append(parts, valueText(next))
	}
	if coalesced {
		p.warn(octaveerr.WMultiWordCoalesce, "coalesced "+strconv.Itoa(len(parts))+" tokens into a multi-word value")
	} else {
		return first, nil
	}
	return MultiWordValue{Pos: pos, Text: strings.Join(parts, " ")}, nil
}

func valueText(v Value) string {
	lit, ok := v.(LiteralValue)
	if !ok {
		return ""
	}
	switch lit.Kind {
	case "string":
		return lit.Raw.(string)
	case "number":
		return numberLexeme(lit.Raw)
	case "boolean":
		return strconv.FormatBool(lit.Raw.(bool))
	case "null":
		return "null"
	default:
		if s, ok := lit.Raw.(string); ok {
			return s
		}
		return ""
	}
}

func valuePos(v Value) Pos {
	switch x := v.(type) {
	case LiteralValue:
		return x.Pos
	default:
		return Pos{}
	}
}

// --- brackets: list / inline map / holographic --------------------------

func (p *Parser) parseBracketed() (Value, *octaveerr.CompilerError) {
	start := p.advance() // '['
	p.bracketDepth++
	defer func() { p.bracketDepth-- }()
	if p.bracketDepth >= maxNestingDepth {
		return nil, p.fatal(octaveerr.EMaxNestingExceeded, "nesting depth exceeded")
	}
	if p.bracketDepth == deepNestingWarnThreshold {
		if !p.warnedDeepLine[start.Line] {
			p.warn(octaveerr.WDeepNesting, "bracket nesting depth reached "+strconv.Itoa(deepNestingWarnThreshold))
			p.warnedDeepLine[start.Line] = true
		}
	}

	markStart := p.current
	depth := 1
	sawCommaAtDepth1 := false
	sawConstraintAtDepth1 := false
	for depth > 0 && !p.isAtEnd() {
		switch p.peek().Kind {
		case lexer.LIST_START:
			depth++
		case lexer.LIST_END:
			depth--
		case lexer.COMMA:
			if depth == 1 {
				sawCommaAtDepth1 = true
			}
		case lexer.CONSTRAINT:
			if depth == 1 {
				sawConstraintAtDepth1 = true
			}
		}
		if depth > 0 {
			p.advance()
		}
	}
	markEnd := p.current
	if !p.check(lexer.LIST_END) {
		return nil, p.fatal(octaveerr.E007, "unclosed list")
	}

	if sawConstraintAtDepth1 && !sawCommaAtDepth1 {
		if holo, ok := p.tryParseHolographic(start, markStart, markEnd); ok {
			p.current = markEnd
			p.advance() // ']'
			return holo, nil
		}
	}

	p.current = markStart
	if isInlineMapShape(p.tokens, markStart, markEnd) {
		return p.parseInlineMap(start)
	}
	return p.parseList(start)
}

func (p *Parser) tryParseHolographic(start lexer.Token, from, to int) (HolographicValue, bool) {
	var raw strings.Builder
	for i := from; i < to; i++ {
		raw.WriteString(p.tokens[i].Lexeme)
	}
	full := raw.String()
	idx := strings.Index(full, "∧")
	if idx < 0 {
		return HolographicValue{}, false
	}
	example := full[:idx]
	rest := full[idx+len("∧"):]
	chain := rest
	target := ""
	if ti := strings.Index(rest, "→§"); ti >= 0 {
		chain = rest[:ti]
		target = rest[ti+len("→§"):]
	}
	return HolographicValue{
		Pos: Pos{start.Line, start.Column}, Example: strings.Trim(example, `"`),
		Chain: chain, Target: target, RawPattern: "[" + full + "]",
	}, true
}

func isInlineMapShape(tokens []lexer.Token, from, to int) bool {
	depth := 0
	for i := from; i < to; i++ {
		switch tokens[i].Kind {
		case lexer.LIST_START:
			depth++
		case lexer.LIST_END:
			depth--
		case lexer.ASSIGN:
			if depth == 0 {
				return true
			}
		case lexer.COMMA:
			if depth == 0 {
				continue
			}
		}
	}
	return false
}

func (p *Parser) parseList(start lexer.Token) (Value, *octaveerr.CompilerError) {
	list := ListValue{Pos: Pos{start.Line, start.Column}}
	for !p.check(lexer.LIST_END) && !p.isAtEnd() {
		p.skipNewlines()
		if p.check(lexer.LIST_END) {
			break
		}
		v, err := p.parseValue(start.Column)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, v)
		p.skipNewlines()
		if !p.match(lexer.COMMA) {
			break
		}
		p.skipNewlines()
	}
	if !p.match(lexer.LIST_END) {
		return nil, p.fatal(octaveerr.E007, "unclosed list")
	}
	return list, nil
}

func (p *Parser) parseInlineMap(start lexer.Token) (Value, *octaveerr.CompilerError) {
	m := InlineMapValue{Pos: Pos{start.Line, start.Column}}
	for !p.check(lexer.LIST_END) && !p.isAtEnd() {
		p.skipNewlines()
		if p.check(lexer.LIST_END) {
			break
		}
		if !p.check(lexer.IDENTIFIER) {
			return nil, p.fatal(octaveerr.E005, "expected a key in inline map")
		}
		key := p.advance().Lexeme
		if !p.match(lexer.ASSIGN) {
			return nil, p.fatal(octaveerr.E001, "expected '::' in inline map entry")
		}
		if p.check(lexer.LIST_START) {
			if p.strict {
				return nil, p.fatal(octaveerr.ENestedInlineMap, "nested inline map in strict mode")
			}
			p.warn(octaveerr.WNestedInlineMap, "nested inline map value")
		}
		v, err := p.parseValue(start.Column)
		if err != nil {
			return nil, err
		}
		if _, absent := v.(AbsentValue); !absent {
			m.Pairs = append(m.Pairs, InlineMapPair{Key: key, Value: v})
		}
		p.skipNewlines()
		if !p.match(lexer.COMMA) {
			break
		}
		p.skipNewlines()
	}
	if !p.match(lexer.LIST_END) {
		return nil, p.fatal(octaveerr.E007, "unclosed inline map")
	}
	return m, nil
}

func (p *Parser) parseLiteralZone() (LiteralZoneValue, *octaveerr.CompilerError) {
	open := p.advance() // FENCE_OPEN
	zone := LiteralZoneValue{Pos: Pos{open.Line, open.Column}, FenceLen: open.FenceLen, InfoTag: open.InfoTag}
	if p.check(lexer.LITERAL_CONTENT) {
		tok := p.advance()
		if s, ok := tok.Value.(string); ok {
			zone.Content = s
		}
	}
	if !p.match(lexer.FENCE_CLOSE) {
		e := p.fatal(octaveerr.E006, "unterminated literal zone")
		return zone, e
	}
	return zone, nil
}
