// Package filter turns configured filter definitions and request input into predicate
// clauses for the query engine.
package filter

import (
	"insights/internal/logger"
	"insights/internal/schema"
	"insights/pkg/config"
)

// Spec is one configured filter. Input filters take their value from the request,
// the others always apply with Value.
type Spec struct {
	Key      string
	Alias    string
	Operator Operator
	// Text keeps the configured operator, the only rendering of a Raw operator.
	Text            string
	Input           bool
	Value           any
	Or              bool
	CaseInsensitive bool
}

// FromConfig converts a configured filter.
func FromConfig(c config.FilterConfig) Spec {
	return Spec{
		Key:             c.Key,
		Alias:           c.Alias,
		Operator:        ParseOperator(c.Operator),
		Text:            c.Operator,
		Input:           c.Input,
		Value:           c.Value,
		Or:              c.Or,
		CaseInsensitive: c.CaseInsensitive,
	}
}

// Name is the input name of the filter: its alias, or its key without one.
func (s Spec) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Key
}

// Clause is a compiled predicate on one source column.
type Clause struct {
	Key             string
	Origin          schema.Origin
	Operator        Operator
	Text            string
	Values          []any
	Or              bool
	CaseInsensitive bool
}

// Resolver maps a filter key to the column it reads.
type Resolver func(key string) (schema.Origin, bool)

// Compile builds the clauses for specs in declaration order. Input values are looked up
// by filter name; an input filter without a value is left out, as is a toggle input that
// is not true. Specs whose key no longer resolves are skipped.
func Compile(specs []Spec, resolve Resolver, values map[string][]any) []Clause {
	var clauses []Clause
	for _, s := range specs {
		if s.Key == "" {
			continue
		}
		origin, ok := resolve(s.Key)
		if !ok {
			logger.Warn("filter on unknown field %q skipped", s.Key)
			continue
		}
		c := Clause{
			Key:             s.Key,
			Origin:          origin,
			Operator:        s.Operator,
			Text:            s.Text,
			Or:              s.Or,
			CaseInsensitive: s.CaseInsensitive,
		}
		if !s.Input {
			if !s.Operator.Toggle() {
				c.Values = fixedValues(s.Value)
			}
			clauses = append(clauses, c)
			continue
		}
		in := nonNil(values[s.Name()])
		if len(in) == 0 {
			continue
		}
		if s.Operator.Toggle() {
			if on, _ := in[0].(bool); !on {
				continue
			}
		} else {
			c.Values = in
		}
		clauses = append(clauses, c)
	}
	return clauses
}

func fixedValues(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return nonNil(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

func nonNil(values []any) []any {
	var out []any
	for _, v := range values {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}
