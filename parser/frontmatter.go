package parser

import (
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/octave-lang/octave/octaveerr"
)

// stripFrontmatter removes a leading `---\n...\n---` YAML block and
// replaces it with an equal number of blank lines, so every subsequent
// line number the lexer and parser report still lines up with the
// original text. The raw block (including delimiters) is returned
// verbatim for I4 auditability; it is validated as YAML (spec's
// ambient config/test-tooling stack: goccy/go-yaml) but never
// interpreted further by the core pipeline.
func stripFrontmatter(text, file string) (string, string, *octaveerr.CompilerError) {
	if !strings.HasPrefix(text, "---\n") && text != "---" {
		return text, "", nil
	}
	lines := strings.Split(text, "\n")
	if lines[0] != "---" {
		return text, "", nil
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if lines[i] == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return text, "", nil
	}

	raw := strings.Join(lines[:end+1], "\n")
	body := strings.TrimPrefix(raw, "---\n")
	body = strings.TrimSuffix(body, "\n---")
	var probe map[string]any
	if strings.TrimSpace(body) != "" {
		if err := yaml.Unmarshal([]byte(body), &probe); err != nil {
			return "", "", ptrErr(octaveerr.New(octaveerr.PhaseParser, octaveerr.EFrontmatter,
				"malformed YAML frontmatter: "+err.Error(),
				octaveerr.Location{File: file, Line: 1, Column: 1}, octaveerr.Fatal))
		}
	}

	blankLines := strings.Repeat("\n", end+1)
	rest := strings.Join(lines[end+1:], "\n")
	return blankLines + rest, raw, nil
}

func ptrErr(e octaveerr.CompilerError) *octaveerr.CompilerError { return &e }
