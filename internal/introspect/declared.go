package introspect

import (
	"fmt"
	"strings"

	"insights/internal/schema"
	"insights/pkg/config"
)

// Declared builds the record types listed in the types section of the config.
func Declared(cfgs []config.TypeConfig) ([]*schema.Type, error) {
	types := make([]*schema.Type, 0, len(cfgs))
	for _, tc := range cfgs {
		if tc.Name == "" {
			return nil, fmt.Errorf("type without a name")
		}
		t := &schema.Type{
			ID:         tc.Name,
			Name:       tc.Name,
			Namespace:  tc.Schema,
			Collection: tc.Table,
		}
		if t.Collection == "" {
			t.Collection = tc.Name
		}
		for _, fc := range tc.Fields {
			kind, err := schema.ParseKind(fc.Type)
			if err != nil {
				return nil, fmt.Errorf("type %s field %s: %w", tc.Name, fc.Name, err)
			}
			f := schema.Field{
				Name:     fc.Name,
				Kind:     kind,
				Column:   fc.Column,
				Optional: fc.Optional,
			}
			if fc.References != "" {
				f.References = parseReference(fc.References)
			}
			t.Fields = append(t.Fields, f)
		}
		types = append(types, t)
	}
	return types, nil
}

// parseReference reads "Type" or "Type:field"; the field defaults to id.
func parseReference(s string) *schema.Reference {
	typeID, field, found := strings.Cut(s, ":")
	if !found || field == "" {
		field = "id"
	}
	return &schema.Reference{TypeID: typeID, Field: field}
}
