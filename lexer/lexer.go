package lexer

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/unicode/norm"

	"github.com/octave-lang/octave/octaveerr"
)

// semverPattern recognizes the three OCTAVE semver variants (bare,
// prerelease, build metadata) so rule #2 ("semver before NUMBER") can be
// tried before falling back to greedy numeric scanning.
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?`)

// inlineFenceAntipattern matches `KEY::```...` on one line, the classic
// cause of an unterminated literal zone (the author meant the fence to
// open a block but typed it inline after the assignment).
var inlineFenceAntipattern = regexp.MustCompile("^\\s*[^\\s:]+::\\s*`{3,}")

// Lexer tokenizes OCTAVE source.
type Lexer struct {
	source  []rune
	start   int
	current int
	line    int
	column  int
	startLine   int
	startColumn int
	file    string
	lenient bool

	tokens   []Token
	repairs  []Repair
	warnings octaveerr.List

	bracketStack []bracketEntry

	// zones are literal-zone spans within l.source, in ascending order of
	// Start; the main scan loop emits FENCE_OPEN/LITERAL_CONTENT/
	// FENCE_CLOSE for each and jumps the cursor past it instead of
	// dispatching scanToken over its raw backtick/content runes.
	zones   []zoneInfo
	zoneIdx int
}

// zoneInfo describes one literal zone located during the line-oriented
// pre-pass, in rune offsets into the lexer's (already assembled) source
// buffer.
type zoneInfo struct {
	fenceLen     int
	infoTag      string
	content      string
	openStart    int
	openEnd      int
	contentStart int
	contentEnd   int
	closeStart   int
	closeEnd     int
	openLine     int
	openColumn   int
	closeLine    int
	closeColumn  int
}

type bracketEntry struct {
	ch     rune
	line   int
	column int
}

// newLexer creates a Lexer over already-line-prepared source (see Tokenize).
func newLexer(source, file string, lenient bool) *Lexer {
	return &Lexer{
		source:  []rune(source),
		line:    1,
		column:  1,
		file:    file,
		lenient: lenient,
		tokens:  make([]Token, 0, len(source)/8+8),
	}
}

// Tokenize lexes text into a token stream. It performs line-oriented
// normalization (NFC outside literal zones, byte-preservation inside
// them), detects literal zones, logs auditable repairs, and returns
// either the full token stream or a fatal octaveerr.CompilerError (tabs,
// unterminated/nested fences, unbalanced brackets, invalid envelope
// identifiers). Failures found while scanning tokens come with whatever
// was scanned before them; tab and fence failures, found in the
// line-preparation pass, come with no tokens.
func Tokenize(text, file string, lenient bool) ([]Token, []Repair, octaveerr.List, error) {
	prepared, zones, fatal := prepareLines(text, file)
	if fatal != nil {
		return nil, nil, nil, *fatal
	}

	l := newLexer(prepared, file, lenient)
	l.zones = zones
	for !l.isAtEnd() {
		if l.zoneIdx < len(l.zones) && l.current == l.zones[l.zoneIdx].openStart {
			l.emitZone(l.zones[l.zoneIdx])
			l.zoneIdx++
			continue
		}
		l.start = l.current
		l.startLine = l.line
		l.startColumn = l.column
		if err := l.scanToken(); err != nil {
			return l.tokens, l.repairs, l.warnings, *err
		}
	}

	if len(l.bracketStack) > 0 {
		first := l.bracketStack[0]
		return l.tokens, l.repairs, l.warnings, octaveerr.New(
			octaveerr.PhaseLexer, octaveerr.EUnbalancedBracket,
			"unclosed '['", octaveerr.Location{File: file, Line: first.line, Column: first.column}, octaveerr.Fatal)
	}

	l.tokens = append(l.tokens, Token{Kind: EOF, Line: l.line, Column: l.column, File: file, Start: l.current, End: l.current})
	return l.tokens, l.repairs, l.warnings, nil
}

// prepareLines performs the line-oriented normalization + literal-zone
// detection pass (I1): lines outside an open fence are NFC-normalized and
// checked for bare tabs; lines inside a fence are preserved byte-for-byte.
// Fence precedence follows spec §4.1 exactly (equal-length+blank-trailing
// closes; >= length with trailing content or > length alone errors;
// shorter runs are literal content). It returns the assembled buffer the
// rune scanner runs over plus the located zones, in rune-offset terms,
// so Tokenize can emit FENCE_OPEN/LITERAL_CONTENT/FENCE_CLOSE directly
// instead of re-deriving zone boundaries during the rune scan.
func prepareLines(text, file string) (string, []zoneInfo, *octaveerr.CompilerError) {
	lines := strings.Split(text, "\n")
	prepared := make([]string, len(lines))

	type pending struct {
		fenceLen            int
		infoTag             string
		openLine, openColumn int
		openIdx             int // 0-based line index of the open marker
	}
	var open *pending
	var zones []zoneInfo

	for i, raw := range lines {
		lineNo := i + 1
		if open != nil {
			trimmed := strings.TrimLeft(raw, " ")
			indent := len(raw) - len(trimmed)
			btLen := backtickRunLength(trimmed)
			if btLen > 0 && indent <= 3 {
				trailing := strings.TrimSpace(trimmed[btLen:])
				switch {
				case btLen == open.fenceLen && trailing == "":
					prepared[i] = raw
					zones = append(zones, zoneInfo{
						fenceLen: open.fenceLen, infoTag: open.infoTag,
						content:     strings.Join(prepared[open.openIdx+1:i], "\n"),
						openLine:    open.openLine, openColumn: open.openColumn,
						closeLine:   lineNo, closeColumn: indent + 1,
					})
					open = nil
					continue
				case btLen >= open.fenceLen && trailing != "":
					return "", nil, ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.E007,
						"nested fence of equal or greater length with trailing content",
						octaveerr.Location{File: file, Line: lineNo, Column: indent + 1}, octaveerr.Fatal))
				case btLen > open.fenceLen:
					return "", nil, ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.E007,
						"nested fence of greater length", octaveerr.Location{File: file, Line: lineNo, Column: indent + 1}, octaveerr.Fatal))
				default:
					prepared[i] = raw // shorter run: literal content
				}
			} else {
				prepared[i] = raw // literal content, byte-for-byte, tabs preserved
			}
			continue
		}

		if idx := strings.IndexByte(raw, '\t'); idx >= 0 {
			return "", nil, ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.E005,
				"tab character outside literal zone", octaveerr.Location{File: file, Line: lineNo, Column: idx + 1}, octaveerr.Fatal))
		}
		trimmed := strings.TrimLeft(raw, " ")
		indent := len(raw) - len(trimmed)
		btLen := backtickRunLength(trimmed)
		if btLen >= 3 && indent <= 3 {
			open = &pending{fenceLen: btLen, infoTag: strings.TrimSpace(trimmed[btLen:]),
				openLine: lineNo, openColumn: indent + 1, openIdx: i}
			prepared[i] = raw
			continue
		}
		prepared[i] = norm.NFC.String(raw)
	}

	if open != nil {
		hint := ""
		for _, ln := range lines[:open.openIdx+1] {
			if inlineFenceAntipattern.MatchString(ln) {
				hint = " (hint: did you mean to put the fence on its own line? `KEY::` followed by a fenced block on the next line)"
				break
			}
		}
		return "", nil, ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.E006,
			"unterminated literal zone"+hint, octaveerr.Location{File: file, Line: open.openLine}, octaveerr.Fatal))
	}

	lineStart := make([]int, len(prepared))
	lineEnd := make([]int, len(prepared))
	offset := 0
	for i, p := range prepared {
		lineStart[i] = offset
		offset += len([]rune(p))
		lineEnd[i] = offset
		if i < len(prepared)-1 {
			offset++ // the '\n'
		}
	}

	for zi := range zones {
		z := &zones[zi]
		oi := z.openLine - 1
		ci := z.closeLine - 1
		z.openStart, z.openEnd = lineStart[oi], lineEnd[oi]
		z.contentStart = lineStart[oi+1]
		if ci > oi+1 {
			z.contentEnd = lineEnd[ci-1]
		} else {
			z.contentEnd = z.contentStart
		}
		z.closeStart, z.closeEnd = lineStart[ci], lineEnd[ci]
	}

	return strings.Join(prepared, "\n"), zones, nil
}

// emitZone appends FENCE_OPEN, LITERAL_CONTENT, and FENCE_CLOSE for a
// located zone and fast-forwards the cursor to just past its close
// marker, so the rune scanner never dispatches over fence backticks or
// zone content directly.
func (l *Lexer) emitZone(z zoneInfo) {
	l.tokens = append(l.tokens, Token{
		Kind: FENCE_OPEN, FenceLen: z.fenceLen, InfoTag: z.infoTag, Lexeme: strings.Repeat("`", z.fenceLen) + z.infoTag,
		Line: z.openLine, Column: z.openColumn, File: l.file, Start: z.openStart, End: z.openEnd,
	})
	l.tokens = append(l.tokens, Token{
		Kind: LITERAL_CONTENT, Value: z.content, Lexeme: z.content,
		Line: z.openLine + 1, Column: 1, File: l.file, Start: z.contentStart, End: z.contentEnd,
	})
	l.tokens = append(l.tokens, Token{
		Kind: FENCE_CLOSE, FenceLen: z.fenceLen, Lexeme: strings.Repeat("`", z.fenceLen),
		Line: z.closeLine, Column: z.closeColumn, File: l.file, Start: z.closeStart, End: z.closeEnd,
	})
	l.current = z.closeEnd
	l.line = z.closeLine
	l.column = z.closeColumn + z.fenceLen
}

func backtickRunLength(s string) int {
	n := 0
	for n < len(s) && s[n] == '`' {
		n++
	}
	return n
}

func ptr[T any](v T) *T { return &v }

// --- rune-level scanning -------------------------------------------------

func (l *Lexer) isAtEnd() bool { return l.current >= len(l.source) }

func (l *Lexer) advance() rune {
	r := l.source[l.current]
	l.current++
	l.column++
	return r
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

func (l *Lexer) peekAt(offset int) rune {
	if l.current+offset >= len(l.source) {
		return 0
	}
	return l.source[l.current+offset]
}

func (l *Lexer) match(expected rune) bool {
	if l.peek() != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) addToken(kind Kind, value any) {
	l.tokens = append(l.tokens, Token{
		Kind:   kind,
		Value:  value,
		Lexeme: string(l.source[l.start:l.current]),
		Line:   l.startLine,
		Column: l.startColumn,
		File:   l.file,
		Start:  l.start,
		End:    l.current,
	})
}

func (l *Lexer) addAliasToken(kind Kind, glyph, original string) {
	l.tokens = append(l.tokens, Token{
		Kind:           kind,
		Lexeme:         glyph,
		NormalizedFrom: original,
		Line:           l.startLine,
		Column:         l.startColumn,
		File:           l.file,
		Start:          l.start,
		End:            l.current,
	})
	l.repairs = append(l.repairs, Repair{Kind: "ascii_alias", Original: original, Replaced: glyph, Line: l.startLine, Column: l.startColumn})
}

func (l *Lexer) warn(code, message string) {
	l.warnings = append(l.warnings, octaveerr.New(octaveerr.PhaseLexer, code, message,
		octaveerr.Location{File: l.file, Line: l.startLine, Column: l.startColumn}, octaveerr.Warning))
}

func (l *Lexer) fatal(code, message string) *octaveerr.CompilerError {
	return ptr(octaveerr.New(octaveerr.PhaseLexer, code, message,
		octaveerr.Location{File: l.file, Line: l.startLine, Column: l.startColumn}, octaveerr.Fatal))
}

// scanToken dispatches a single token at the current cursor. The scan
// order follows spec §4.1 item: grammar sentinel (position 0 only) →
// semver → envelope markers → operators (longest-first) → literals →
// identifiers.
func (l *Lexer) scanToken() *octaveerr.CompilerError {
	if l.start == 0 {
		if ok, err := l.tryGrammarSentinel(); err != nil {
			return err
		} else if ok {
			return nil
		}
	}

	r := l.advance()

	switch r {
	case '\n':
		l.addToken(NEWLINE, nil)
		l.line++
		l.column = 1
		return nil
	case ' ', '\r':
		return nil
	case '[':
		l.bracketStack = append(l.bracketStack, bracketEntry{'[', l.startLine, l.startColumn})
		l.addToken(LIST_START, nil)
		return nil
	case ']':
		if len(l.bracketStack) == 0 {
			return l.fatal(octaveerr.EUnbalancedBracket, "unmatched ']'")
		}
		l.bracketStack = l.bracketStack[:len(l.bracketStack)-1]
		l.addToken(LIST_END, nil)
		return nil
	case ',':
		l.addToken(COMMA, nil)
		return nil
	case '/':
		if l.peek() == '/' {
			return l.scanComment()
		}
		return l.fatal(octaveerr.E005, "unexpected '/' (line comments use '//')")
	case '@':
		l.addToken(AT, nil)
		return nil
	case '$':
		return l.scanVariable()
	case '"':
		return l.scanString()
	case ':':
		if l.match(':') {
			l.addToken(ASSIGN, nil)
		} else {
			l.addToken(BLOCK, nil)
		}
		return nil
	case '<':
		if l.peek() == '-' && l.peekAt(1) == '>' {
			l.advance()
			l.advance()
			l.addAliasToken(TENSION, "⇌", "<->")
			return nil
		}
		return l.fatal(octaveerr.E005, "unexpected '<' (not part of '<->' or a 'NAME<qual>' annotation)")
	case '=':
		if l.peek() == '=' && l.peekAt(1) == '=' {
			return l.scanEnvelopeMarker()
		}
		return l.fatal(octaveerr.E005, "unexpected '='")
	case '-':
		if l.peek() == '>' {
			l.advance()
			l.addAliasToken(FLOW, "→", "->")
			return nil
		}
		if l.peek() == '-' && l.peekAt(1) == '-' {
			l.advance()
			l.advance()
			for l.peek() == '-' {
				l.advance()
			}
			l.addToken(SEPARATOR, nil)
			return nil
		}
		if isDigit(l.peek()) {
			l.current--
			l.column--
			return l.scanNumberOrVersion()
		}
		return l.fatal(octaveerr.E005, "unexpected '-'")
	case '~':
		l.addAliasToken(CONCAT, "⧺", "~")
		return nil
	case '+':
		l.addAliasToken(SYNTHESIS, "⊕", "+")
		return nil
	case '|':
		l.addAliasToken(ALTERNATIVE, "∨", "|")
		return nil
	case '&':
		l.addAliasToken(CONSTRAINT, "∧", "&")
		return nil
	case '#':
		l.addAliasToken(SECTION, "§", "#")
		return nil
	case '→':
		l.addToken(FLOW, nil)
		return nil
	case '⊕':
		l.addToken(SYNTHESIS, nil)
		return nil
	case '⧺':
		l.addToken(CONCAT, nil)
		return nil
	case '⇌':
		l.addToken(TENSION, nil)
		return nil
	case '∧':
		l.addToken(CONSTRAINT, nil)
		return nil
	case '∨':
		l.addToken(ALTERNATIVE, nil)
		return nil
	case '§':
		l.addToken(SECTION, nil)
		return nil
	case '`':
		return l.scanBareFence()
	}

	if isDigit(r) {
		l.current--
		l.column--
		return l.scanNumberOrVersion()
	}
	if isIdentStart(r) {
		l.current--
		l.column--
		return l.scanIdentifier()
	}
	return l.fatal(octaveerr.E005, "unexpected character: "+string(r))
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// tryGrammarSentinel recognizes `OCTAVE::<semver>` but only when called at
// rune offset 0 of the lexer's input (spec: "anywhere else it degrades to
// ordinary tokens").
func (l *Lexer) tryGrammarSentinel() (bool, *octaveerr.CompilerError) {
	const lit = "OCTAVE"
	if l.current+len(lit) > len(l.source) {
		return false, nil
	}
	for i, ch := range lit {
		if l.source[l.current+i] != ch {
			return false, nil
		}
	}
	after := l.current + len(lit)
	if after+1 >= len(l.source) || l.source[after] != ':' || l.source[after+1] != ':' {
		return false, nil
	}
	rest := string(l.source[after+2:])
	m := semverPattern.FindString(rest)
	if m == "" {
		return false, nil
	}
	if _, err := semver.NewVersion(m); err != nil {
		return false, nil
	}
	end := after + 2 + len([]rune(m))
	consumed := end - l.current
	for i := 0; i < consumed; i++ {
		l.advance()
	}
	l.addToken(GRAMMAR_SENTINEL, m)
	return true, nil
}

func (l *Lexer) scanEnvelopeMarker() *octaveerr.CompilerError {
	l.advance()
	l.advance() // consume remaining two '='
	if l.peekSeq("END===") {
		for i := 0; i < len("END==="); i++ {
			l.advance()
		}
		l.addToken(ENVELOPE_END, nil)
		return nil
	}
	name, err := l.scanEnvelopeIdentifier()
	if err != nil {
		return err
	}
	if !(l.peek() == '=' && l.peekAt(1) == '=' && l.peekAt(2) == '=') {
		return l.fatal(octaveerr.E005, "malformed envelope marker, expected closing '==='")
	}
	l.advance()
	l.advance()
	l.advance()
	l.addToken(ENVELOPE_START, name)
	return nil
}

func (l *Lexer) peekSeq(s string) bool {
	for i, ch := range s {
		if l.peekAt(i) != ch {
			return false
		}
	}
	return true
}

func (l *Lexer) scanEnvelopeIdentifier() (string, *octaveerr.CompilerError) {
	startCol := l.column
	if !(unicode.IsLetter(l.peek()) || l.peek() == '_') {
		bad := l.peek()
		reason := "unexpected character"
		switch {
		case bad == '-':
			reason = "hyphen not allowed in envelope identifier"
		case bad == ' ':
			reason = "space not allowed in envelope identifier"
		case isDigit(bad):
			reason = "envelope identifier cannot start with a digit"
		}
		return "", ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.EInvalidEnvelopeID, reason,
			octaveerr.Location{File: l.file, Line: l.line, Column: startCol}, octaveerr.Fatal))
	}
	start := l.current
	for unicode.IsLetter(l.peek()) || unicode.IsDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}
	if l.peek() == '-' || l.peek() == ' ' {
		bad := l.peek()
		reason := "unexpected character in envelope identifier"
		if bad == '-' {
			reason = "hyphen not allowed in envelope identifier"
		} else if bad == ' ' {
			reason = "space not allowed in envelope identifier"
		}
		return "", ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.EInvalidEnvelopeID, reason,
			octaveerr.Location{File: l.file, Line: l.line, Column: l.column}, octaveerr.Fatal))
	}
	return string(l.source[start:l.current]), nil
}

func (l *Lexer) scanVariable() *octaveerr.CompilerError {
	if !isIdentStart(l.peek()) {
		return l.fatal(octaveerr.E005, "expected identifier after '$'")
	}
	start := l.current
	for isIdentBody(l.peek()) {
		l.advance()
	}
	name := string(l.source[start:l.current])
	l.addToken(VARIABLE, "$"+name)
	return nil
}

// scanComment consumes a `//` line comment up to (not including) the
// terminating newline, emitting a COMMENT token whose Lexeme is the
// comment text with the leading `//` and surrounding space trimmed.
func (l *Lexer) scanComment() *octaveerr.CompilerError {
	l.advance() // second '/'
	for l.peek() != '\n' && l.peek() != 0 {
		l.advance()
	}
	text := strings.TrimSpace(string(l.source[l.start+2 : l.current]))
	l.tokens = append(l.tokens, Token{
		Kind:   COMMENT,
		Lexeme: text,
		Line:   l.startLine,
		Column: l.startColumn,
		File:   l.file,
		Start:  l.start,
		End:    l.current,
	})
	return nil
}

func (l *Lexer) scanString() *octaveerr.CompilerError {
	if l.peek() == '"' && l.peekAt(1) == '"' {
		return l.scanTripleQuotedString()
	}
	var b strings.Builder
	for !l.isAtEnd() && l.peek() != '"' {
		if l.peek() == '\n' {
			return l.fatal(octaveerr.E005, "unterminated string literal")
		}
		if l.peek() == '\\' {
			l.advance()
			if l.isAtEnd() {
				return l.fatal(octaveerr.E005, "unterminated string literal")
			}
			b.WriteRune(unescape(l.advance()))
		} else {
			b.WriteRune(l.advance())
		}
	}
	if l.isAtEnd() {
		return l.fatal(octaveerr.E005, "unterminated string literal")
	}
	l.advance() // closing quote
	l.addToken(STRING, b.String())
	return nil
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}

func (l *Lexer) scanTripleQuotedString() *octaveerr.CompilerError {
	l.advance()
	l.advance() // consume the other two opening quotes
	var b strings.Builder
	for {
		if l.isAtEnd() {
			return l.fatal(octaveerr.E006, "unterminated triple-quoted string")
		}
		if l.peek() == '"' && l.peekAt(1) == '"' && l.peekAt(2) == '"' {
			break
		}
		if l.peek() == '\n' {
			l.line++
			l.column = 0
		}
		b.WriteRune(l.advance())
	}
	l.advance()
	l.advance()
	l.advance()
	original := string(l.source[l.start:l.current])
	l.tokens = append(l.tokens, Token{
		Kind: STRING, Value: b.String(), Lexeme: b.String(), NormalizedFrom: original,
		Line: l.startLine, Column: l.startColumn, File: l.file, Start: l.start, End: l.current,
	})
	l.repairs = append(l.repairs, Repair{Kind: "triple_quote", Original: original, Replaced: b.String(), Line: l.startLine, Column: l.startColumn})
	return nil
}

func (l *Lexer) scanNumberOrVersion() *octaveerr.CompilerError {
	rest := string(l.source[l.current:])
	if m := semverPattern.FindString(rest); m != "" {
		if after := l.current + len([]rune(m)); after >= len(l.source) || !isIdentBody(l.source[after]) {
			if _, err := semver.NewVersion(m); err == nil {
				for range []rune(m) {
					l.advance()
				}
				l.addToken(VERSION, m)
				return l.maybeMergePercent()
			}
		}
	}
	return l.scanNumber()
}

func (l *Lexer) scanNumber() *octaveerr.CompilerError {
	neg := l.peek() == '-'
	if neg {
		l.advance()
	}
	for isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.current
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if isDigit(l.peek()) {
			isFloat = true
			for isDigit(l.peek()) {
				l.advance()
			}
		} else {
			l.column -= l.current - save
			l.current = save
		}
	}

	raw := string(l.source[l.start:l.current])
	if isFloat {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return l.fatal(octaveerr.E005, "invalid float literal: "+err.Error())
		}
		l.tokens = append(l.tokens, Token{Kind: NUMBER, Value: v, Lexeme: raw, RawLexeme: raw, Line: l.startLine, Column: l.startColumn, File: l.file, Start: l.start, End: l.current})
	} else {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return l.fatal(octaveerr.E005, "invalid integer literal: "+err.Error())
		}
		l.tokens = append(l.tokens, Token{Kind: NUMBER, Value: v, Lexeme: raw, RawLexeme: raw, Line: l.startLine, Column: l.startColumn, File: l.file, Start: l.start, End: l.current})
	}
	return l.maybeMergePercent()
}

// maybeMergePercent implements the GH#287 percent-suffix rule: `60%`
// merges into one IDENTIFIER token, unless `%` is immediately followed by
// `::` (which would let a value bypass the grammar entirely).
func (l *Lexer) maybeMergePercent() *octaveerr.CompilerError {
	if l.peek() != '%' {
		return nil
	}
	if l.peekAt(1) == ':' && l.peekAt(2) == ':' {
		return nil
	}
	l.advance()
	last := &l.tokens[len(l.tokens)-1]
	last.Kind = IDENTIFIER
	last.Lexeme = last.Lexeme + "%"
	last.Value = last.Lexeme
	last.End = l.current
	return nil
}

func (l *Lexer) scanIdentifier() *octaveerr.CompilerError {
	for isIdentBody(l.peek()) {
		l.advance()
	}
	lexeme := string(l.source[l.start:l.current])

	lexeme = strings.TrimRight(lexeme, "-")

	if angled, err := l.maybeAngleAnnotation(lexeme); err != nil {
		return err
	} else if angled != "" {
		lexeme = angled
	} else if rep, err := l.maybeCurlyAnnotation(lexeme); err != nil {
		return err
	} else if rep != "" {
		lexeme = rep
	}

	if lexeme == "true" || lexeme == "false" {
		l.emitIdentResult(BOOLEAN, lexeme == "true", lexeme)
		return l.maybeMergePercent()
	}
	if lexeme == "null" {
		l.emitIdentResult(NULL, nil, lexeme)
		return l.maybeMergePercent()
	}
	if wrongCaseBooleans[lexeme] {
		canon, kind := canonicalizeWrongCase(lexeme)
		if l.lenient {
			l.warn(octaveerr.WWrongCase, "non-canonical case for reserved literal: "+lexeme)
			var v any
			if kind == BOOLEAN {
				v = canon == "true"
			}
			l.emitIdentResult(kind, v, lexeme)
			return l.maybeMergePercent()
		}
	}
	if lexeme == "vs" {
		l.addAliasToken(TENSION, "⇌", "vs")
		return l.maybeMergePercent()
	}
	if strings.Contains(lexeme, "vs") && lexeme != "vs" {
		idx := strings.Index(lexeme, "vs")
		beforeOK := idx == 0 || !unicode.IsLetter(rune(lexeme[idx-1]))
		afterIdx := idx + 2
		afterOK := afterIdx >= len(lexeme) || !unicode.IsLetter(rune(lexeme[afterIdx]))
		if !beforeOK && !afterOK {
			l.warn(octaveerr.WBoundaryMissing, "'vs' embedded in identifier without word boundaries: "+lexeme)
		}
	}

	l.emitIdentResult(IDENTIFIER, lexeme, lexeme)
	return l.maybeMergePercent()
}

func canonicalizeWrongCase(lexeme string) (string, Kind) {
	lower := strings.ToLower(lexeme)
	switch lower {
	case "true", "false":
		return lower, BOOLEAN
	case "null", "nil":
		return "null", NULL
	default:
		return lower, IDENTIFIER
	}
}

func (l *Lexer) emitIdentResult(kind Kind, value any, lexeme string) {
	l.tokens = append(l.tokens, Token{
		Kind: kind, Value: value, Lexeme: lexeme,
		Line: l.startLine, Column: l.startColumn, File: l.file, Start: l.start, End: l.current,
	})
}

// maybeAngleAnnotation consumes `<qualifier>` immediately following an
// identifier, producing a single combined IDENTIFIER lexeme. A standalone
// '<' that is not part of this pattern (checked by requiring the char
// right after '<' to be identifier-start) is left alone so the '<->'
// tension operator keeps working.
func (l *Lexer) maybeAngleAnnotation(name string) (string, *octaveerr.CompilerError) {
	if l.peek() != '<' || !isIdentStart(l.peekAt(1)) {
		return "", nil
	}
	start := l.current
	l.advance() // '<'
	for l.peek() != '>' && !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	if l.peek() != '>' {
		l.current = start
		return "", nil
	}
	l.advance()
	return name + string(l.source[start:l.current]), nil
}

// maybeCurlyAnnotation handles `NAME{qualifier}`. Lenient mode repairs it
// to `NAME<qualifier>` (W_REPAIR_CANDIDATE); strict mode raises E005 with
// a fix suggestion instead of silently accepting it.
func (l *Lexer) maybeCurlyAnnotation(name string) (string, *octaveerr.CompilerError) {
	if l.peek() != '{' || !isIdentStart(l.peekAt(1)) {
		return "", nil
	}
	start := l.current
	l.advance()
	for l.peek() != '}' && !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
	if l.peek() != '}' {
		l.current = start
		return "", nil
	}
	l.advance()
	qualifier := string(l.source[start+1 : l.current-1])
	original := name + string(l.source[start:l.current])
	replacement := name + "<" + qualifier + ">"
	if !l.lenient {
		return "", ptr(octaveerr.New(octaveerr.PhaseLexer, octaveerr.E005,
			"curly annotation '"+original+"' is not valid OCTAVE syntax",
			octaveerr.Location{File: l.file, Line: l.startLine, Column: l.startColumn}, octaveerr.Fatal).
			WithSuggestion(octaveerr.FixSuggestion{
				Description: "use angle brackets for annotations",
				OldCode:     original,
				NewCode:     replacement,
			}))
	}
	l.repairs = append(l.repairs, Repair{Kind: "curly_annotation", Original: original, Replaced: replacement, Line: l.startLine, Column: l.startColumn})
	l.warn(octaveerr.WRepairCandidate, "repaired curly annotation '"+original+"' to '"+replacement+"'")
	return replacement, nil
}

// scanBareFence handles a stray ``` encountered outside the line-oriented
// pre-pass's zone tracking (e.g. mid-line, not at line start after
// indentation) -- per spec only a line-start fence (indent <= 3) opens a
// zone, so anywhere else a backtick run is just ordinary content and is
// rejected as an unexpected character to avoid silently swallowing it.
func (l *Lexer) scanBareFence() *octaveerr.CompilerError {
	return l.fatal(octaveerr.E005, "unexpected '`' outside a line-start fence marker")
}
