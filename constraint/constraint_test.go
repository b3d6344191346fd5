package constraint

import "testing"

func TestParseConstraintAtom(t *testing.T) {
	cases := []struct {
		in       string
		wantKind Kind
		wantArgs []string
	}{
		{"REQ", REQ, nil},
		{"OPT", OPT, nil},
		{"ENUM[a,b,c]", ENUM, []string{"a", "b", "c"}},
		{"CONST[PROTOCOL_DEFINITION]", CONST, []string{"PROTOCOL_DEFINITION"}},
		{"TYPE[string]", TYPE, []string{"string"}},
		{"RANGE[0,100]", RANGE, []string{"0", "100"}},
		{"MIN_LENGTH[3]", MIN_LENGTH, []string{"3"}},
		{"MAX_LENGTH[50]", MAX_LENGTH, []string{"50"}},
		{"DATE", DATE, nil},
		{"ISO8601", ISO8601, nil},
		{"DIR", DIR, nil},
		{"APPEND_ONLY", APPEND_ONLY, nil},
	}
	for _, tc := range cases {
		c, err := ParseConstraint(tc.in)
		if err != nil {
			t.Fatalf("ParseConstraint(%q): %v", tc.in, err)
		}
		if c.Kind != tc.wantKind {
			t.Fatalf("ParseConstraint(%q): kind = %v, want %v", tc.in, c.Kind, tc.wantKind)
		}
		if len(c.Args) != len(tc.wantArgs) {
			t.Fatalf("ParseConstraint(%q): args = %v, want %v", tc.in, c.Args, tc.wantArgs)
		}
		for i := range tc.wantArgs {
			if c.Args[i] != tc.wantArgs[i] {
				t.Fatalf("ParseConstraint(%q): args[%d] = %q, want %q", tc.in, i, c.Args[i], tc.wantArgs[i])
			}
		}
	}
}

func TestParseConstraintUnknown(t *testing.T) {
	if _, err := ParseConstraint("NOT_A_CONSTRAINT"); err == nil {
		t.Fatal("expected error for unknown constraint kind")
	}
}

func TestParseConstraintRegexWithComma(t *testing.T) {
	c, err := ParseConstraint(`REGEX["\d{3},\d{4}"]`)
	if err != nil {
		t.Fatalf("ParseConstraint: %v", err)
	}
	if len(c.Args) != 1 || c.Args[0] != `\d{3},\d{4}` {
		t.Fatalf("expected comma preserved inside quotes, got %v", c.Args)
	}
}

func TestChainParseAndToString(t *testing.T) {
	chain, err := Parse("REQ∧TYPE[string]∧MAX_LENGTH[50]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(chain.Constraints) != 3 {
		t.Fatalf("expected 3 constraints, got %d", len(chain.Constraints))
	}
	if got := chain.ToString(); got != "REQ∧TYPE[string]∧MAX_LENGTH[50]" {
		t.Fatalf("ToString() = %q", got)
	}
}

func TestChainRequired(t *testing.T) {
	req, _ := Parse("REQ∧TYPE[string]")
	if !req.Required() {
		t.Fatal("expected chain with REQ to be required")
	}
	opt, _ := Parse("OPT∧TYPE[string]")
	if opt.Required() {
		t.Fatal("expected chain with OPT to not be required")
	}
	bare, _ := Parse("TYPE[string]")
	if bare.Required() {
		t.Fatal("expected chain with neither REQ nor OPT to not be required")
	}
}

func TestChainValidateAbsent(t *testing.T) {
	chain, _ := Parse("REQ∧TYPE[string]")
	if err := chain.Validate(nil); err == nil {
		t.Fatal("expected error validating absent value against REQ chain")
	}
	opt, _ := Parse("OPT∧TYPE[string]")
	if err := opt.Validate(nil); err != nil {
		t.Fatalf("expected no error validating absent value against OPT chain, got %v", err)
	}
}

func TestChainValidateTypeCanonicalUppercase(t *testing.T) {
	chain, err := Parse("TYPE[STRING]")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := chain.Validate("hello"); err != nil {
		t.Fatalf("expected TYPE[STRING] to accept a string value, got %v", err)
	}
	if err := chain.Validate(float64(1)); err == nil {
		t.Fatal("expected TYPE[STRING] to reject a numeric value")
	}

	number, _ := Parse("TYPE[NUMBER]")
	if err := number.Validate(float64(3.5)); err != nil {
		t.Fatalf("expected TYPE[NUMBER] to accept a float value, got %v", err)
	}

	boolean, _ := Parse("TYPE[BOOLEAN]")
	if err := boolean.Validate(true); err != nil {
		t.Fatalf("expected TYPE[BOOLEAN] to accept a bool value, got %v", err)
	}

	list, _ := Parse("TYPE[LIST]")
	if err := list.Validate([]any{"a", "b"}); err != nil {
		t.Fatalf("expected TYPE[LIST] to accept a list value, got %v", err)
	}
}

func TestChainValidateEnum(t *testing.T) {
	chain, _ := Parse("REQ∧ENUM[draft,published,archived]")
	if err := chain.Validate("published"); err != nil {
		t.Fatalf("expected published to validate, got %v", err)
	}
	if err := chain.Validate("deleted"); err == nil {
		t.Fatal("expected deleted to fail enum validation")
	}
}

func TestChainValidateRange(t *testing.T) {
	chain, _ := Parse("RANGE[0,100]")
	if err := chain.Validate(float64(50)); err != nil {
		t.Fatalf("expected 50 in range, got %v", err)
	}
	if err := chain.Validate(float64(150)); err == nil {
		t.Fatal("expected 150 to fail range validation")
	}
}

func TestChainValidateLength(t *testing.T) {
	chain, _ := Parse("MIN_LENGTH[3]∧MAX_LENGTH[10]")
	if err := chain.Validate("hello"); err != nil {
		t.Fatalf("expected hello to pass length bounds, got %v", err)
	}
	if err := chain.Validate("hi"); err == nil {
		t.Fatal("expected hi to fail MIN_LENGTH")
	}
	if err := chain.Validate("this is too long"); err == nil {
		t.Fatal("expected long string to fail MAX_LENGTH")
	}
}

func TestChainValidateDate(t *testing.T) {
	chain, _ := Parse("DATE")
	if err := chain.Validate("2026-07-31"); err != nil {
		t.Fatalf("expected valid date, got %v", err)
	}
	if err := chain.Validate("07/31/2026"); err == nil {
		t.Fatal("expected malformed date to fail")
	}
}

func TestChainValidateISO8601(t *testing.T) {
	chain, _ := Parse("ISO8601")
	if err := chain.Validate("2026-07-31T12:00:00Z"); err != nil {
		t.Fatalf("expected valid datetime, got %v", err)
	}
	if err := chain.Validate("not-a-datetime"); err == nil {
		t.Fatal("expected malformed datetime to fail")
	}
}

func TestChainValidateRegex(t *testing.T) {
	chain, err := Parse(`REGEX[^[a-z]+$]`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := chain.Validate("abc"); err != nil {
		t.Fatalf("expected abc to match, got %v", err)
	}
	if err := chain.Validate("ABC"); err == nil {
		t.Fatal("expected ABC to fail pattern match")
	}
}

func TestValidateAppendOnly(t *testing.T) {
	prior := []any{"a", "b"}
	if err := ValidateAppendOnly(prior, []any{"a", "b", "c"}); err != nil {
		t.Fatalf("expected append-only growth to validate, got %v", err)
	}
	if err := ValidateAppendOnly(prior, []any{"a"}); err == nil {
		t.Fatal("expected shrinking list to fail")
	}
	if err := ValidateAppendOnly(prior, []any{"a", "x"}); err == nil {
		t.Fatal("expected mutated existing item to fail")
	}
}

func TestChainCompile(t *testing.T) {
	chain, _ := Parse("REQ∧ENUM[a,b]")
	if got := chain.Compile(); got != "(?:a|b)" {
		t.Fatalf("Compile() = %q, want (?:a|b)", got)
	}
	empty, _ := Parse("REQ")
	if got := empty.Compile(); got != ".*" {
		t.Fatalf("Compile() for non-textual chain = %q, want .*", got)
	}
}

func TestChainEmpty(t *testing.T) {
	chain, err := Parse("")
	if err != nil {
		t.Fatalf("Parse(\"\"): %v", err)
	}
	if len(chain.Constraints) != 0 {
		t.Fatalf("expected empty chain, got %v", chain.Constraints)
	}
	if chain.Required() {
		t.Fatal("expected empty chain to not be required")
	}
}
