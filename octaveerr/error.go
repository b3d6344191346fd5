// Package octaveerr is the OCTAVE error taxonomy: the lexer, parser and
// validator raise or collect CompilerError values so a caller sees one
// shape regardless of which of those phases produced it. The schema
// extractor and the hydrator return plain Go errors.
package octaveerr

import (
	"encoding/json"
	"fmt"
)

// Severity is the severity level of a CompilerError.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Severity.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	str := string(data)
	if len(str) >= 2 && str[0] == '"' && str[len(str)-1] == '"' {
		str = str[1 : len(str)-1]
	}
	switch str {
	case "info":
		*s = Info
	case "warning":
		*s = Warning
	case "error":
		*s = Error
	case "fatal":
		*s = Fatal
	default:
		*s = Error
	}
	return nil
}

// Location is a position in source text. Line and Column are 1-based.
// Length covers multi-character tokens (e.g. a whole identifier).
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
}

// FixSuggestion is an optional auto-fix a phase can attach to an error,
// e.g. the lexer suggesting `NAME<qual>` for a rejected `NAME{qual}`.
type FixSuggestion struct {
	Description string `json:"description"`
	OldCode     string `json:"old_code"`
	NewCode     string `json:"new_code"`
}

// CompilerError is the shared error/warning/info value for every phase.
type CompilerError struct {
	Phase      string          `json:"phase"` // "lexer", "parser", "schema", "validator", "hydrator"
	Code       string          `json:"code"`  // stable identifier, e.g. "E005"
	Message    string          `json:"message"`
	Location   Location        `json:"location"`
	Severity   Severity        `json:"severity"`
	FieldPath  string          `json:"field_path,omitempty"`
	Suggestion *FixSuggestion  `json:"suggestion,omitempty"`
	Related    []CompilerError `json:"related_errors,omitempty"`
}

// Error implements the error interface.
func (e CompilerError) Error() string {
	if e.Location.File == "" && e.Location.Line == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Code, e.Message)
}

// New creates a CompilerError.
func New(phase, code, message string, loc Location, severity Severity) CompilerError {
	return CompilerError{
		Phase:    phase,
		Code:     code,
		Message:  message,
		Location: loc,
		Severity: severity,
	}
}

// WithSuggestion attaches a fix suggestion.
func (e CompilerError) WithSuggestion(s FixSuggestion) CompilerError {
	e.Suggestion = &s
	return e
}

// WithFieldPath attaches a validation field path.
func (e CompilerError) WithFieldPath(path string) CompilerError {
	e.FieldPath = path
	return e
}

// WithRelated appends a related (cascading) error.
func (e CompilerError) WithRelated(related CompilerError) CompilerError {
	e.Related = append(e.Related, related)
	return e
}

// IsError returns true for Error or Fatal severity.
func (e CompilerError) IsError() bool {
	return e.Severity == Error || e.Severity == Fatal
}

// IsWarning returns true for Warning severity.
func (e CompilerError) IsWarning() bool {
	return e.Severity == Warning
}

// ToJSON renders the error as a JSON-compatible map, matching the
// fixed failure envelope every higher-level caller expects:
// {code, message, ...}.
func (e CompilerError) ToJSON() map[string]any {
	data, _ := json.Marshal(e)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

// List is a collection of CompilerErrors, used wherever a phase
// accumulates rather than raises (lenient lexing/parsing, validation).
type List []CompilerError

// Error implements the error interface for a List.
func (l List) Error() string {
	if len(l) == 0 {
		return "no errors"
	}
	if len(l) == 1 {
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
}

// HasErrors returns true if any entry is Error or Fatal severity.
func (l List) HasErrors() bool {
	for _, e := range l {
		if e.IsError() {
			return true
		}
	}
	return false
}

// Errors returns only entries at Error/Fatal severity.
func (l List) Errors() List {
	out := make(List, 0, len(l))
	for _, e := range l {
		if e.IsError() {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns only entries at Warning severity.
func (l List) Warnings() List {
	out := make(List, 0, len(l))
	for _, e := range l {
		if e.IsWarning() {
			out = append(out, e)
		}
	}
	return out
}
