package insight

import (
	"strings"

	"insights/internal/filter"
	"insights/internal/logger"
	"insights/internal/schema"
	"insights/pkg/config"
)

// FieldSpec is one projected result field.
type FieldSpec struct {
	Key       string
	Alias     string
	Aggregate Aggregate
}

// Name is the result field name: the normalized alias, or the key.
func (f FieldSpec) Name() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Key
}

// buildForeign resolves the foreign field imports into a lookup type. Each import walks
// foreign keys from base and carries the origin of the column it reads.
func buildForeign(base *schema.Type, specs []config.ForeignFieldConfig, types *schema.Registry) *schema.Type {
	foreign := &schema.Type{ID: base.ID + ".foreign", Name: "foreign"}
	for _, spec := range specs {
		path := strings.Split(spec.Path, ":")
		via, last := path[:len(path)-1], path[len(path)-1]
		name := spec.Name
		if name == "" {
			name = last
		}
		cur := base
		for _, hop := range via {
			fk, ok := cur.Lookup(hop)
			if !ok || fk.References == nil {
				cur = nil
				break
			}
			if cur, ok = types.Type(fk.References.TypeID); !ok {
				cur = nil
				break
			}
		}
		var src schema.Field
		ok := cur != nil && len(via) > 0
		if ok {
			src, ok = cur.Lookup(last)
		}
		if !ok {
			logger.Warn("foreign field %s: path %q does not resolve from %s", name, spec.Path, base.ID)
			continue
		}
		if _, dup := foreign.Own(name); dup {
			logger.Warn("foreign field %s declared twice, keeping the first", name)
			continue
		}
		f := src.Clone(name)
		f.Column, f.References = "", nil
		f.Origin = &schema.Origin{TypeID: base.ID, Via: via, Field: last}
		foreign.Fields = append(foreign.Fields, f)
	}
	return foreign
}

// resolve finds key on the base type, then among the foreign imports.
func resolve(base, foreign *schema.Type, key string) (f schema.Field, imported bool, ok bool) {
	if f, ok := base.Lookup(key); ok {
		return f, false, true
	}
	if f, ok := foreign.Own(key); ok {
		return f, true, true
	}
	return schema.Field{}, false, false
}

// buildResult derives the row type: it extends base but restricts every base field, so
// only the configured fields are exposed, in declaration order.
func buildResult(id string, base *schema.Type, fields []FieldSpec, foreign *schema.Type) *schema.Type {
	result := &schema.Type{ID: id + ".results", Name: "results", Super: base}
	for _, f := range base.All() {
		result.Restrict = append(result.Restrict, f.Name)
	}
	for _, spec := range fields {
		src, imported, ok := resolve(base, foreign, spec.Key)
		if !ok {
			logger.Warn("insight %s: field %q not found on %s, skipped", id, spec.Key, base.ID)
			continue
		}
		name := spec.Name()
		if _, dup := result.Own(name); dup {
			logger.Warn("insight %s: result field %q declared twice, keeping the first", id, name)
			continue
		}
		f := src.Clone(name)
		switch spec.Aggregate {
		case Count:
			f.Kind = schema.KindLong
		case Avg:
			f.Kind = schema.KindFloat
		}
		if name != spec.Key && !imported {
			f.Origin = &schema.Origin{TypeID: base.ID, Field: spec.Key}
		}
		if spec.Aggregate.Calculated() {
			f.Calculation = spec.Aggregate.String()
		}
		result.Fields = append(result.Fields, f)
	}
	return result
}

// buildInput derives the request type. Input filters that resolve form the nested filter
// group, exposed once per name.
func buildInput(id string, base *schema.Type, filters []filter.Spec, foreign *schema.Type) *schema.Type {
	input := &schema.Type{ID: id + ".input", Name: "input", Fields: []schema.Field{
		{Name: "connectionId", Kind: schema.KindString, Optional: true, Internal: true},
		{Name: "transactionId", Kind: schema.KindString, Optional: true, Internal: true},
		{Name: "limit", Kind: schema.KindInt, Optional: true},
		{Name: "offset", Kind: schema.KindLong, Optional: true},
		{Name: "orderBy", Kind: schema.KindString, Optional: true, List: true},
		{Name: "totalCount", Kind: schema.KindBool, Optional: true},
	}}
	group := &schema.Type{ID: id + ".input.filter", Name: "filter"}
	for _, spec := range filters {
		if !spec.Input || spec.Key == "" {
			continue
		}
		src, _, ok := resolve(base, foreign, spec.Key)
		if !ok {
			logger.Warn("insight %s: filter on %q not found on %s, not exposed", id, spec.Key, base.ID)
			continue
		}
		name := spec.Name()
		if _, dup := group.Own(name); dup {
			continue
		}
		f := schema.Field{Name: name, Kind: src.Kind, Optional: true}
		if spec.Operator.Toggle() {
			f.Kind = schema.KindBool
		}
		f.List = spec.Operator.ListCapable() && f.Kind != schema.KindBool
		group.Fields = append(group.Fields, f)
	}
	if len(group.Fields) > 0 {
		input.Fields = append(input.Fields, schema.Field{Name: "filter", Kind: schema.KindComplex, Optional: true, Complex: group})
	}
	return input
}

var pageType = &schema.Type{ID: "page", Name: "page", Fields: []schema.Field{
	{Name: "total", Kind: schema.KindLong},
	{Name: "offset", Kind: schema.KindLong},
	{Name: "limit", Kind: schema.KindInt, Optional: true},
	{Name: "pageCount", Kind: schema.KindLong},
	{Name: "current", Kind: schema.KindLong},
}}

// buildOutput derives the response type wrapping the result rows.
func buildOutput(id string, result *schema.Type) *schema.Type {
	return &schema.Type{ID: id + ".output", Name: "output", Fields: []schema.Field{
		{Name: "results", Kind: schema.KindComplex, Optional: true, List: true, Complex: result},
		{Name: "page", Kind: schema.KindComplex, Optional: true, Complex: pageType},
	}}
}
