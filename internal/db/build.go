package db

import (
	"fmt"
	"strings"

	"insights/internal/filter"
	"insights/internal/logger"
	"insights/internal/schema"
)

// statement is a rendered select with its count variant sharing the same arguments.
type statement struct {
	query  string
	count  string
	args   []any
	fields []schema.Field
}

type builder struct {
	dialect Dialect
	types   *schema.Registry
	base    *schema.Type
	args    []any
	joins   []string
	aliases map[string]string
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) table(t *schema.Type) string {
	ns, name := t.Table()
	if ns != "" {
		return b.dialect.Quote(ns) + "." + b.dialect.Quote(name)
	}
	return b.dialect.Quote(name)
}

func (b *builder) typeByID(id string) (*schema.Type, bool) {
	if id == b.base.ID {
		return b.base, true
	}
	return b.types.Type(id)
}

// column renders the source column of o, joining the related tables it walks through.
func (b *builder) column(o schema.Origin) (string, error) {
	cur, ok := b.typeByID(o.TypeID)
	if !ok {
		return "", fmt.Errorf("unknown type %q", o.TypeID)
	}
	alias := "t0"
	for i, hop := range o.Via {
		fk, ok := cur.Lookup(hop)
		if !ok || fk.References == nil {
			return "", fmt.Errorf("field %q of %s is not a foreign key", hop, cur.ID)
		}
		next, ok := b.types.Type(fk.References.TypeID)
		if !ok {
			return "", fmt.Errorf("unknown type %q referenced by %s.%s", fk.References.TypeID, cur.ID, hop)
		}
		key := strings.Join(o.Via[:i+1], ":")
		nextAlias, seen := b.aliases[key]
		if !seen {
			target, ok := next.Lookup(fk.References.Field)
			if !ok {
				return "", fmt.Errorf("unknown field %q on %s", fk.References.Field, next.ID)
			}
			nextAlias = fmt.Sprintf("t%d", len(b.aliases)+1)
			b.aliases[key] = nextAlias
			b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
				b.table(next), nextAlias,
				alias, b.dialect.Quote(fk.ColumnName()),
				nextAlias, b.dialect.Quote(target.ColumnName())))
		}
		cur, alias = next, nextAlias
	}
	f, ok := cur.Lookup(o.Field)
	if !ok {
		return "", fmt.Errorf("unknown field %q on %s", o.Field, cur.ID)
	}
	return alias + "." + b.dialect.Quote(f.ColumnName()), nil
}

// fieldColumn renders the source column of a result field. Fields without an origin
// carry the name of a base type column.
func (b *builder) fieldColumn(f schema.Field) (string, error) {
	o := schema.Origin{TypeID: b.base.ID, Field: f.Name}
	if f.Origin != nil {
		o = *f.Origin
	}
	return b.column(o)
}

func aggregate(calculation, col string) (string, error) {
	switch fn := strings.ToLower(calculation); fn {
	case "count", "sum", "avg", "min", "max":
		return strings.ToUpper(fn) + "(" + col + ")", nil
	}
	return "", fmt.Errorf("unsupported aggregate %q", calculation)
}

var comparisons = map[filter.Operator]string{
	filter.Gt:  ">",
	filter.Lt:  "<",
	filter.Gte: ">=",
	filter.Lte: "<=",
}

func (b *builder) condition(c filter.Clause) (string, error) {
	col, err := b.column(c.Origin)
	if err != nil {
		return "", err
	}
	fold := func(s string) string {
		if c.CaseInsensitive {
			return "LOWER(" + s + ")"
		}
		return s
	}
	anyOf := func(render func(ph string) string) string {
		parts := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			parts = append(parts, render(b.bind(v)))
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	}

	switch c.Operator {
	case filter.IsNull:
		return col + " IS NULL", nil
	case filter.IsNotNull:
		return col + " IS NOT NULL", nil
	case filter.Raw:
		return col + " " + strings.TrimSpace(c.Text), nil
	case filter.Eq, filter.Neq:
		negate := c.Operator == filter.Neq
		switch len(c.Values) {
		case 0:
			if negate {
				return col + " IS NOT NULL", nil
			}
			return col + " IS NULL", nil
		case 1:
			op := " = "
			if negate {
				op = " <> "
			}
			return fold(col) + op + fold(b.bind(c.Values[0])), nil
		}
		phs := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			phs = append(phs, fold(b.bind(v)))
		}
		op := " IN ("
		if negate {
			op = " NOT IN ("
		}
		return fold(col) + op + strings.Join(phs, ", ") + ")", nil
	case filter.Like:
		if len(c.Values) == 0 {
			return "", nil
		}
		return anyOf(func(ph string) string { return fold(col) + " LIKE " + fold(ph) }), nil
	case filter.ILike:
		if len(c.Values) == 0 {
			return "", nil
		}
		return anyOf(func(ph string) string { return "LOWER(" + col + ") LIKE LOWER(" + ph + ")" }), nil
	}
	op, ok := comparisons[c.Operator]
	if !ok {
		return "", fmt.Errorf("unsupported operator %v", c.Operator)
	}
	if len(c.Values) == 0 {
		return "", nil
	}
	return anyOf(func(ph string) string { return col + " " + op + " " + ph }), nil
}

// where joins clauses with AND; a clause flagged Or joins the previous one with OR.
func (b *builder) where(clauses []filter.Clause) (string, error) {
	var groups [][]string
	for _, c := range clauses {
		cond, err := b.condition(c)
		if err != nil {
			return "", err
		}
		if cond == "" {
			continue
		}
		if c.Or && len(groups) > 0 {
			groups[len(groups)-1] = append(groups[len(groups)-1], cond)
		} else {
			groups = append(groups, []string{cond})
		}
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			parts = append(parts, g[0])
		} else {
			parts = append(parts, "("+strings.Join(g, " OR ")+")")
		}
	}
	return strings.Join(parts, " AND "), nil
}

// orderTerm resolves "name", "name asc" or "name desc" against the result, then the base type.
func (b *builder) orderTerm(result *schema.Type, term string) (string, bool, error) {
	parts := strings.Fields(term)
	if len(parts) == 0 || len(parts) > 2 {
		return "", false, nil
	}
	dir := ""
	if len(parts) == 2 {
		switch strings.ToLower(parts[1]) {
		case "asc":
			dir = " ASC"
		case "desc":
			dir = " DESC"
		default:
			return "", false, nil
		}
	}
	if f, ok := result.Lookup(parts[0]); ok && f.Complex == nil {
		return b.dialect.Quote(f.Name) + dir, true, nil
	}
	if _, ok := b.base.Lookup(parts[0]); ok {
		col, err := b.column(schema.Origin{TypeID: b.base.ID, Field: parts[0]})
		return col + dir, err == nil, err
	}
	return "", false, nil
}

func build(dialect Dialect, types *schema.Registry, result *schema.Type, req SelectRequest) (statement, error) {
	base := result.Base()
	b := &builder{dialect: dialect, types: types, base: base, aliases: map[string]string{}}

	fields := result.All()
	items := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := b.fieldColumn(f)
		if err != nil {
			return statement{}, err
		}
		if f.Calculation != "" {
			if col, err = aggregate(f.Calculation, col); err != nil {
				return statement{}, err
			}
		}
		items = append(items, col+" AS "+dialect.Quote(f.Name))
	}
	if len(items) == 0 {
		return statement{}, fmt.Errorf("type %s selects no fields", result.ID)
	}

	where, err := b.where(req.Filters)
	if err != nil {
		return statement{}, err
	}

	// Grouping without calculated fields collapses duplicate rows into one per key.
	var groups []string
	for _, key := range req.GroupBy {
		f, ok := result.Lookup(key)
		if !ok || f.Calculation != "" {
			logger.Warn("group by on unknown field %q of %s skipped", key, result.ID)
			continue
		}
		col, err := b.fieldColumn(f)
		if err != nil {
			return statement{}, err
		}
		groups = append(groups, col)
	}

	var orders []string
	for _, term := range req.OrderBy {
		o, ok, err := b.orderTerm(result, term)
		if err != nil {
			return statement{}, err
		}
		if !ok {
			logger.Debug("order by %q of %s ignored", term, result.ID)
			continue
		}
		orders = append(orders, o)
	}

	var q strings.Builder
	q.WriteString("SELECT ")
	q.WriteString(strings.Join(items, ", "))
	q.WriteString(" FROM ")
	q.WriteString(b.table(base))
	q.WriteString(" t0")
	for _, j := range b.joins {
		q.WriteString(" ")
		q.WriteString(j)
	}
	if where != "" {
		q.WriteString(" WHERE ")
		q.WriteString(where)
	}
	if len(groups) > 0 {
		q.WriteString(" GROUP BY ")
		q.WriteString(strings.Join(groups, ", "))
	}
	inner := q.String()
	if len(orders) > 0 {
		q.WriteString(" ORDER BY ")
		q.WriteString(strings.Join(orders, ", "))
	}

	return statement{
		query:  dialect.Paginate(q.String(), len(orders) > 0, req.Limit, req.Offset),
		count:  "SELECT COUNT(*) FROM (" + inner + ") q",
		args:   b.args,
		fields: fields,
	}, nil
}
