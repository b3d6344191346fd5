package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/octave-lang/octave/constraint"
)

// ToJSONSchema renders a SchemaDefinition as a JSON Schema object
// document, one property per field, so tooling outside this module
// (editors, other language clients) can validate OCTAVE documents
// without linking against the Go constraint package directly.
func (s *SchemaDefinition) ToJSONSchema() (*jsonschema.Schema, error) {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(s.Fields)),
	}
	for name, field := range s.Fields {
		prop := fieldToJSONSchema(field)
		root.Properties[name] = prop
		if field.Chain.Required() {
			root.Required = append(root.Required, name)
		}
	}
	return root, nil
}

// MarshalJSONSchema is a convenience wrapper returning the marshaled
// bytes of ToJSONSchema, for callers (the CLI's `octave schema`
// subcommand) that just want bytes to write out.
func (s *SchemaDefinition) MarshalJSONSchema() ([]byte, error) {
	sch, err := s.ToJSONSchema()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(sch, "", "  ")
}

func fieldToJSONSchema(field FieldDefinition) *jsonschema.Schema {
	prop := &jsonschema.Schema{}
	for _, c := range field.Chain.Constraints {
		switch c.Kind {
		case constraint.TYPE:
			if len(c.Args) == 1 {
				prop.Type = jsonSchemaType(c.Args[0])
			}
		case constraint.ENUM:
			for _, v := range c.Args {
				prop.Enum = append(prop.Enum, v)
			}
		case constraint.CONST:
			if len(c.Args) == 1 {
				prop.Const = c.Args[0]
			}
		case constraint.REGEX:
			if len(c.Args) == 1 {
				prop.Pattern = c.Args[0]
			}
		case constraint.RANGE:
			if len(c.Args) == 2 {
				if min, err := strconv.ParseFloat(c.Args[0], 64); err == nil {
					prop.Minimum = &min
				}
				if max, err := strconv.ParseFloat(c.Args[1], 64); err == nil {
					prop.Maximum = &max
				}
			}
		case constraint.MIN_LENGTH:
			if len(c.Args) == 1 {
				if n, err := strconv.Atoi(c.Args[0]); err == nil {
					prop.MinLength = &n
				}
			}
		case constraint.MAX_LENGTH:
			if len(c.Args) == 1 {
				if n, err := strconv.Atoi(c.Args[0]); err == nil {
					prop.MaxLength = &n
				}
			}
		case constraint.DATE:
			prop.Format = "date"
		case constraint.ISO8601:
			prop.Format = "date-time"
		}
	}
	if prop.Type == "" {
		prop.Type = "string"
	}
	return prop
}

func jsonSchemaType(octaveType string) string {
	switch strings.ToLower(strings.TrimSpace(octaveType)) {
	case "number", "int", "float":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "list":
		return "array"
	default:
		return "string"
	}
}
