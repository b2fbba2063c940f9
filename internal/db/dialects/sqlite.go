package dialects

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"insights/internal/db"
	"insights/internal/introspect"
	"insights/internal/logger"
)

type sqlite struct{}

func (sqlite) Quote(ident string) string { return doubleQuote(ident) }

func (sqlite) Placeholder(int) string { return "?" }

func (sqlite) Paginate(query string, _ bool, limit *int, offset *int64) string {
	return limitOffset(query, limit, offset, "-1")
}

// Extract reads the main database. Tables carry no schema, so their type ids are the
// bare table names.
func (sqlite) Extract(ctx context.Context, dbConn *sql.DB) (introspect.Schema, error) {
	var s introspect.Schema
	tables, err := readTables(ctx, dbConn, `
        SELECT '', name
        FROM sqlite_master
        WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
        ORDER BY name`)
	if err != nil {
		return s, err
	}
	s.Tables = tables

	for i := range s.Tables {
		t := &s.Tables[i]
		pr, err := dbConn.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`, t.Name)
		if err != nil {
			return s, fmt.Errorf("query columns for %s: %w", t.Name, err)
		}
		for pr.Next() {
			var col introspect.Column
			var notnull, pk int
			if err := pr.Scan(&col.Name, &col.Type, &notnull, &pk); err != nil {
				pr.Close()
				return s, fmt.Errorf("scan column for %s: %w", t.Name, err)
			}
			col.Nullable, col.PK = notnull == 0 && pk == 0, pk != 0
			t.Columns = append(t.Columns, col)
		}
		pr.Close()

		fkRows, err := dbConn.QueryContext(ctx, `
            SELECT id, "table", group_concat("from", ', '), group_concat("to", ', ')
            FROM pragma_foreign_key_list(?)
            GROUP BY id, "table"`, t.Name)
		if err != nil {
			logger.Error("query foreign key: %v", err)
			continue
		}
		for fkRows.Next() {
			var id int
			var table, from, to sql.NullString
			if err := fkRows.Scan(&id, &table, &from, &to); err != nil {
				logger.Error("scan foreign key: %v", err)
				continue
			}
			// A reference without target columns points at the primary key, which the
			// pragma leaves unnamed.
			if table.Valid && from.Valid && to.Valid {
				s.ForeignKeys = append(s.ForeignKeys, introspect.ForeignKey{
					FromTable:  t.Name,
					FromColumn: from.String,
					ToTable:    table.String,
					ToColumn:   to.String,
					Constraint: fmt.Sprintf("%s_fk%d", t.Name, id),
				})
			}
		}
		fkRows.Close()
	}
	return s, nil
}

func init() {
	db.Register("sqlite", sqlite{})
}
