package introspect

import (
	"strings"

	"insights/internal/logger"
	"insights/internal/schema"
)

// TypeID returns the registry id of a table: the bare name, qualified by the database
// schema when there is one.
func TypeID(schemaName, table string) string {
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}

// KindOf maps a SQL column type as reported by a catalog to a field kind.
func KindOf(sqlType string) schema.Kind {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	switch {
	case t == "tinyint(1)" || t == "bit" || strings.HasPrefix(t, "bool"):
		return schema.KindBool
	case strings.Contains(t, "char") || strings.Contains(t, "text") || strings.Contains(t, "clob") ||
		strings.Contains(t, "uuid") || strings.Contains(t, "json"):
		return schema.KindString
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return schema.KindTime
	case strings.Contains(t, "int") || strings.HasSuffix(t, "serial"):
		return schema.KindLong
	case strings.Contains(t, "real") || strings.Contains(t, "floa") || strings.Contains(t, "doub") ||
		strings.Contains(t, "numeric") || strings.Contains(t, "decimal") || strings.Contains(t, "money") ||
		strings.Contains(t, "number"):
		return schema.KindFloat
	}
	return schema.KindString
}

// Types converts the catalog into record types. Single column foreign keys become field
// references; composite keys are not navigable and are skipped.
func (s Schema) Types() []*schema.Type {
	types := make([]*schema.Type, 0, len(s.Tables))
	index := make(map[string]*schema.Type, len(s.Tables))
	for _, tab := range s.Tables {
		t := &schema.Type{
			ID:         TypeID(tab.Schema, tab.Name),
			Name:       tab.Name,
			Namespace:  tab.Schema,
			Collection: tab.Name,
		}
		for _, col := range tab.Columns {
			t.Fields = append(t.Fields, schema.Field{
				Name:     col.Name,
				Kind:     KindOf(col.Type),
				Optional: col.Nullable,
			})
		}
		types = append(types, t)
		index[t.ID] = t
	}
	for _, fk := range s.ForeignKeys {
		if strings.Contains(fk.FromColumn, ",") {
			logger.Debug("skipping composite foreign key %s on %s", fk.Constraint, fk.FromTable)
			continue
		}
		from, ok := index[TypeID(fk.FromSchema, fk.FromTable)]
		if !ok {
			continue
		}
		for i := range from.Fields {
			if from.Fields[i].Name == fk.FromColumn {
				from.Fields[i].References = &schema.Reference{TypeID: TypeID(fk.ToSchema, fk.ToTable), Field: fk.ToColumn}
			}
		}
	}
	return types
}
