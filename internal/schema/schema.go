// Package schema describes record shapes: typed fields grouped into types that can
// extend and restrict a base type.
package schema

import (
	"slices"
	"strings"
)

// Origin identifies the source column of a field that was renamed or imported from a
// related type. Via lists the foreign key fields walked from TypeID, empty for a column
// of TypeID itself.
type Origin struct {
	TypeID string
	Via    []string
	Field  string
}

// String renders the origin as path@type, for logs and descriptions only.
func (o Origin) String() string {
	path := append(slices.Clone(o.Via), o.Field)
	return strings.Join(path, ":") + "@" + o.TypeID
}

// Reference marks a field as a foreign key to Field of the type TypeID.
type Reference struct {
	TypeID string
	Field  string
}

// Field is one member of a type.
type Field struct {
	Name     string
	Kind     Kind
	Column   string // storage column, defaults to Name
	Optional bool
	List     bool
	// Internal fields are request-scoped and never read from an external wire format.
	Internal    bool
	Origin      *Origin
	Calculation string // aggregate function applied by the query engine
	References  *Reference
	Complex     *Type
}

// ColumnName returns the storage column of the field.
func (f Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Clone returns a deep copy of the field under a new name. Complex types are shared.
func (f Field) Clone(name string) Field {
	c := f
	c.Name = name
	if f.Origin != nil {
		o := *f.Origin
		o.Via = slices.Clone(f.Origin.Via)
		c.Origin = &o
	}
	if f.References != nil {
		r := *f.References
		c.References = &r
	}
	return c
}

// Type is a named record shape. A type with a Super inherits every field of it that is
// not listed in Restrict.
type Type struct {
	ID         string
	Name       string
	Namespace  string // database schema of the collection, if any
	Collection string // table name, defaults to the nearest collection up the super chain
	Super      *Type
	Restrict   []string
	Fields     []Field
}

// Own returns the field declared directly on t.
func (t *Type) Own(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Lookup finds a field declared on t or inherited and not restricted.
func (t *Type) Lookup(name string) (Field, bool) {
	if f, ok := t.Own(name); ok {
		return f, true
	}
	if t.Super == nil || slices.Contains(t.Restrict, name) {
		return Field{}, false
	}
	return t.Super.Lookup(name)
}

// All returns every visible field, inherited ones first.
func (t *Type) All() []Field {
	var fields []Field
	if t.Super != nil {
		for _, f := range t.Super.All() {
			if slices.Contains(t.Restrict, f.Name) {
				continue
			}
			if _, shadowed := t.Own(f.Name); shadowed {
				continue
			}
			fields = append(fields, f)
		}
	}
	return append(fields, t.Fields...)
}

// Base returns the root of the super chain, t itself when it extends nothing.
func (t *Type) Base() *Type {
	for t.Super != nil {
		t = t.Super
	}
	return t
}

// Table returns the collection backing the type.
func (t *Type) Table() (namespace, table string) {
	for c := t; c != nil; c = c.Super {
		if c.Collection != "" {
			return c.Namespace, c.Collection
		}
	}
	return t.Namespace, t.Name
}
