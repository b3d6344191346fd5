package schema

import (
	"fmt"
	"strings"

	"github.com/octave-lang/octave/constraint"
	"github.com/octave-lang/octave/parser"
)

// Extract walks doc looking for a top-level FIELDS block and an
// optional POLICY block and builds a SchemaDefinition from them. doc
// must already be known to describe a protocol definition (callers
// typically check META.TYPE == "PROTOCOL_DEFINITION" first); Extract
// itself does not re-check META, since some callers build schemas
// from fragments that carry no META block at all.
func Extract(doc *parser.Document) (*SchemaDefinition, error) {
	def := &SchemaDefinition{
		Name:   doc.Name,
		Fields: map[string]FieldDefinition{},
		Policy: PolicyDefinition{UnknownFields: UnknownFieldsReject},
	}

	var fieldsBlock, policyBlock *parser.Block
	for _, node := range doc.Body {
		if block, ok := node.(*parser.Block); ok {
			switch block.Key {
			case "FIELDS":
				fieldsBlock = block
			case "POLICY":
				policyBlock = block
			}
		}
	}

	if fieldsBlock != nil {
		for _, child := range fieldsBlock.Body {
			asn, ok := child.(*parser.Assignment)
			if !ok {
				continue
			}
			field, err := extractField(asn)
			if err != nil {
				return nil, err
			}
			def.Fields[asn.Key] = field
		}
	}

	if policyBlock != nil {
		policy, err := extractPolicy(policyBlock)
		if err != nil {
			return nil, err
		}
		def.Policy = policy
	}

	return def, nil
}

func extractField(asn *parser.Assignment) (FieldDefinition, error) {
	holo, ok := asn.Value.(parser.HolographicValue)
	if !ok {
		return FieldDefinition{}, fmt.Errorf("field %q: expected a holographic pattern value", asn.Key)
	}
	chain, err := constraint.Parse(holo.Chain)
	if err != nil {
		return FieldDefinition{}, fmt.Errorf("field %q: %w", asn.Key, err)
	}
	return FieldDefinition{
		Name:    asn.Key,
		Example: holo.Example,
		Chain:   chain,
		Target:  strings.TrimPrefix(holo.Target, "§"),
	}, nil
}

func extractPolicy(block *parser.Block) (PolicyDefinition, error) {
	policy := PolicyDefinition{UnknownFields: UnknownFieldsReject}
	for _, child := range block.Body {
		asn, ok := child.(*parser.Assignment)
		if !ok {
			continue
		}
		switch asn.Key {
		case "VERSION":
			if lit, ok := asn.Value.(parser.LiteralValue); ok {
				policy.Version = fmt.Sprintf("%v", lit.Raw)
			}
		case "UNKNOWN_FIELDS":
			lit, ok := asn.Value.(parser.LiteralValue)
			if !ok {
				return policy, fmt.Errorf("POLICY.UNKNOWN_FIELDS must be a bare value")
			}
			name := fmt.Sprintf("%v", lit.Raw)
			switch UnknownFieldsPolicy(name) {
			case UnknownFieldsReject, UnknownFieldsWarn, UnknownFieldsIgnore:
				policy.UnknownFields = UnknownFieldsPolicy(name)
			default:
				return policy, fmt.Errorf("POLICY.UNKNOWN_FIELDS: invalid value %q, want REJECT, WARN, or IGNORE", name)
			}
		case "TARGETS":
			list, ok := asn.Value.(parser.ListValue)
			if !ok {
				return policy, fmt.Errorf("POLICY.TARGETS must be a list")
			}
			for _, item := range list.Items {
				policy.Targets = append(policy.Targets, strings.TrimPrefix(targetText(item), "§"))
			}
		}
	}
	return policy, nil
}

func targetText(v parser.Value) string {
	switch val := v.(type) {
	case parser.SectionRefValue:
		return val.Target
	case parser.LiteralValue:
		return fmt.Sprintf("%v", val.Raw)
	default:
		return ""
	}
}
