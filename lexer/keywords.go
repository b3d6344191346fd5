package lexer

import "unicode"

// operatorRunes are the six Unicode OCTAVE expression-operator glyphs plus
// the section marker; they are never part of an identifier even though some
// fall into identifier-eligible Unicode categories.
var operatorRunes = map[rune]bool{
	'→': true,
	'⊕': true,
	'⧺': true,
	'⇌': true,
	'∧': true,
	'∨': true,
	'§': true,
}

// asciiAlias maps an ASCII operator alias to its canonical Unicode glyph
// and token kind. Longest aliases are matched first by the scanner.
type asciiAlias struct {
	ascii string
	glyph string
	kind  Kind
}

// aliasTable is ordered longest-ascii-first so "<->" is tried before "->".
var aliasTable = []asciiAlias{
	{"<->", "⇌", TENSION},
	{"->", "→", FLOW},
	{"~", "⧺", CONCAT},
	{"+", "⊕", SYNTHESIS},
	{"|", "∨", ALTERNATIVE},
	{"&", "∧", CONSTRAINT},
	{"#", "§", SECTION},
}

// nativeGlyph maps a native Unicode operator glyph to its token kind.
var nativeGlyph = map[rune]Kind{
	'→': FLOW,
	'⊕': SYNTHESIS,
	'⧺': CONCAT,
	'⇌': TENSION,
	'∧': CONSTRAINT,
	'∨': ALTERNATIVE,
	'§': SECTION,
}

// reservedWords must always be quoted on emission (they collide with
// OCTAVE literal syntax) and trigger wrong-case warnings when misspelled.
var reservedWords = map[string]bool{
	"true":  true,
	"false": true,
	"null":  true,
	"vs":    true,
}

// wrongCaseBooleans is the set of case-variant spellings of true/false/null
// (including NIL/Nil) that trigger W_WRONG_CASE in lenient mode.
var wrongCaseBooleans = map[string]bool{
	"True": true, "TRUE": true, "tRUE": true,
	"False": true, "FALSE": true,
	"Null": true, "NULL": true, "NIL": true, "Nil": true,
}

// isIdentStart reports whether r may begin an identifier: letter,
// underscore, '.', '/', or Unicode category L*/So/Sm/Sk/Po/No, excluding
// the reserved operator glyphs and the ASCII punctuation the scanner
// dispatches as syntax (':' ',' '"' '@', the operator aliases, and '<').
func isIdentStart(r rune) bool {
	if operatorRunes[r] {
		return false
	}
	switch r {
	case ':', ',', '"', '@', '#', '&', '|', '+', '~', '<':
		return false
	}
	if r == '_' || r == '.' || r == '/' {
		return true
	}
	if unicode.IsLetter(r) {
		return true
	}
	return unicode.In(r, unicode.So, unicode.Sm, unicode.Sk, unicode.Po, unicode.No)
}

// isIdentBody reports whether r may continue an identifier: the start
// set, digits, '-', or Unicode category N*/M*.
func isIdentBody(r rune) bool {
	if isIdentStart(r) {
		return true
	}
	if r == '-' {
		return true
	}
	if unicode.IsDigit(r) {
		return true
	}
	return unicode.In(r, unicode.Nd, unicode.Nl, unicode.No, unicode.Mn, unicode.Mc, unicode.Me)
}

// IsIdentifier reports whether s is shaped like a bare OCTAVE identifier
// end to end, so other phases (the emitter's bare-vs-quoted decision) can
// reuse the lexer's own identifier-shape rules instead of duplicating them.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	runes := []rune(s)
	if !isIdentStart(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if !isIdentBody(r) {
			return false
		}
	}
	return true
}

// IsReservedWord reports whether s is one of OCTAVE's reserved literal
// spellings (true/false/null/vs), which must always be quoted on emission.
func IsReservedWord(s string) bool { return reservedWords[s] }
