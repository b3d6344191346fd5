package octaveerr

// Stable error codes. Messages may vary; codes never do.
const (
	E001 = "E001" // single-colon assignment where `::` was required
	E005 = "E005" // unexpected character (tabs, invalid envelope chars, curly annotation in strict mode, ...)
	E006 = "E006" // unterminated literal zone
	E007 = "E007" // nested fence of equal/greater length; unclosed list; validator field failure (unknown field under REJECT, missing required field, failed constraint)
	E009 = "E009" // unknown routing target

	EHash  = "E_HASH"  // content-addressed hash mismatch
	EPath  = "E_PATH"  // path traversal / symlink escape
	EFile  = "E_FILE"  // file not found
	ERead  = "E_READ"  // read failure

	ETokenize = "E_TOKENIZE" // lexer failure wrapper
	EParse    = "E_PARSE"    // parser failure wrapper
	EEmit     = "E_EMIT"     // emitter failure wrapper
	EInput    = "E_INPUT"    // XOR violation, e.g. both content and file_path supplied

	EInvalidEnvelopeID    = "E_INVALID_ENVELOPE_ID"
	EUnbalancedBracket    = "E_UNBALANCED_BRACKET"
	EMaxNestingExceeded   = "E_MAX_NESTING_EXCEEDED"
	ENestedInlineMap      = "E_NESTED_INLINE_MAP"
	EFrontmatter          = "E_FRONTMATTER" // malformed YAML frontmatter block
)

// Warning codes.
const (
	W001                        = "W001" // unknown field under UNKNOWN_FIELDS=WARN
	WDuplicateKey               = "W_DUPLICATE_KEY"
	WDeepNesting                = "W_DEEP_NESTING"
	WBareFlow                   = "W_BARE_FLOW"
	WConstraintOutsideBrackets  = "W_CONSTRAINT_OUTSIDE_BRACKETS"
	WChainedTension             = "W_CHAINED_TENSION"
	WWrongCase                  = "W_WRONG_CASE"
	WBoundaryMissing            = "W_BOUNDARY_MISSING"
	WRepairCandidate            = "W_REPAIR_CANDIDATE"
	WNestedInlineMap            = "W_NESTED_INLINE_MAP"
	WStruct001                  = "W_STRUCT_001" // section marker loss
	WStruct002                  = "W_STRUCT_002" // block count reduction
	WStruct003                  = "W_STRUCT_003" // assignment count reduction
	WMultiWordCoalesce          = "W_MULTI_WORD_COALESCE"
	WBareLineDropped            = "W_BARE_LINE_DROPPED"
)

// Phase identifiers used in CompilerError.Phase.
const (
	PhaseLexer     = "lexer"
	PhaseParser    = "parser"
	PhaseEmitter   = "emitter"
	PhaseSchema    = "schema"
	PhaseValidator = "validator"
	PhaseHydrator  = "hydrator"
)
