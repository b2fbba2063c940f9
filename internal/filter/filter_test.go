package filter

import (
	"reflect"
	"testing"

	"insights/internal/schema"
	"insights/pkg/config"
)

func TestParseOperator(t *testing.T) {
	var tests = []struct {
		text   string
		op     Operator
		toggle bool
		list   bool
	}{
		{"=", Eq, false, true},
		{"<>", Neq, false, true},
		{"!=", Neq, false, true},
		{">=", Gte, false, false},
		{"LIKE", Like, false, false},
		{"ilike", ILike, false, false},
		{"is null", IsNull, true, false},
		{" is not null ", IsNotNull, true, false},
		{"> current_timestamp", Raw, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			op := ParseOperator(tt.text)
			if op != tt.op {
				t.Errorf("\ngot operator %v, wanted %v", op, tt.op)
			}
			if op.Toggle() != tt.toggle || op.ListCapable() != tt.list {
				t.Errorf("\ngot toggle %v list %v for %v", op.Toggle(), op.ListCapable(), op)
			}
		})
	}
}

func resolver(known ...string) Resolver {
	return func(key string) (schema.Origin, bool) {
		for _, k := range known {
			if k == key {
				return schema.Origin{TypeID: "Order", Field: key}, true
			}
		}
		return schema.Origin{}, false
	}
}

func TestCompile(t *testing.T) {
	specs := []Spec{
		FromConfig(config.FilterConfig{Key: "status", Operator: "=", Input: true}),
		FromConfig(config.FilterConfig{Key: "total", Operator: ">", Value: 0}),
		FromConfig(config.FilterConfig{Key: "shippedAt", Alias: "unshipped", Operator: "is null", Input: true}),
		FromConfig(config.FilterConfig{Key: "dropped", Operator: "=", Input: true}),
		FromConfig(config.FilterConfig{Key: "total", Alias: "max", Operator: "<", Input: true, Or: true}),
		FromConfig(config.FilterConfig{Key: "createdAt", Operator: "> current_timestamp"}),
	}
	resolve := resolver("status", "total", "shippedAt", "createdAt")

	var tests = []struct {
		name   string
		values map[string][]any
		want   []Clause
	}{
		{"no input keeps fixed filters",
			nil,
			[]Clause{
				{Key: "total", Origin: schema.Origin{TypeID: "Order", Field: "total"}, Operator: Gt, Text: ">", Values: []any{0}},
				{Key: "createdAt", Origin: schema.Origin{TypeID: "Order", Field: "createdAt"}, Operator: Raw, Text: "> current_timestamp"},
			}},
		{"list input expands into one clause",
			map[string][]any{"status": {"paid", "open", "void"}},
			[]Clause{
				{Key: "status", Origin: schema.Origin{TypeID: "Order", Field: "status"}, Operator: Eq, Text: "=", Values: []any{"paid", "open", "void"}},
				{Key: "total", Origin: schema.Origin{TypeID: "Order", Field: "total"}, Operator: Gt, Text: ">", Values: []any{0}},
				{Key: "createdAt", Origin: schema.Origin{TypeID: "Order", Field: "createdAt"}, Operator: Raw, Text: "> current_timestamp"},
			}},
		{"toggle on, aliased input and stale key",
			map[string][]any{"unshipped": {true}, "max": {100.0}, "dropped": {"x"}},
			[]Clause{
				{Key: "total", Origin: schema.Origin{TypeID: "Order", Field: "total"}, Operator: Gt, Text: ">", Values: []any{0}},
				{Key: "shippedAt", Origin: schema.Origin{TypeID: "Order", Field: "shippedAt"}, Operator: IsNull, Text: "is null"},
				{Key: "total", Origin: schema.Origin{TypeID: "Order", Field: "total"}, Operator: Lt, Text: "<", Values: []any{100.0}, Or: true},
				{Key: "createdAt", Origin: schema.Origin{TypeID: "Order", Field: "createdAt"}, Operator: Raw, Text: "> current_timestamp"},
			}},
		{"toggle off and nil values are omitted",
			map[string][]any{"unshipped": {false}, "status": {nil}},
			[]Clause{
				{Key: "total", Origin: schema.Origin{TypeID: "Order", Field: "total"}, Operator: Gt, Text: ">", Values: []any{0}},
				{Key: "createdAt", Origin: schema.Origin{TypeID: "Order", Field: "createdAt"}, Operator: Raw, Text: "> current_timestamp"},
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(specs, resolve, tt.values)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("\ngot clauses %+v\nwanted %+v", got, tt.want)
			}
		})
	}
}

func TestCompileKeepsDuplicates(t *testing.T) {
	specs := []Spec{
		{Key: "total", Alias: "range", Operator: Gte, Input: true},
		{Key: "total", Alias: "range", Operator: Lte, Input: true},
	}
	got := Compile(specs, resolver("total"), map[string][]any{"range": {10}})
	if len(got) != 2 || got[0].Operator != Gte || got[1].Operator != Lte {
		t.Errorf("\ngot clauses %+v", got)
	}
}
