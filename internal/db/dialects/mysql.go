package dialects

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"insights/internal/db"
	"insights/internal/introspect"
)

type mysql struct{}

func (mysql) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysql) Placeholder(int) string { return "?" }

// Paginate uses the largest unsigned bigint for an offset without limit, as the MySQL
// manual suggests.
func (mysql) Paginate(query string, _ bool, limit *int, offset *int64) string {
	return limitOffset(query, limit, offset, "18446744073709551615")
}

func (mysql) Extract(ctx context.Context, dbConn *sql.DB) (introspect.Schema, error) {
	var s introspect.Schema
	tables, err := readTables(ctx, dbConn, `
        SELECT table_schema, table_name
        FROM information_schema.tables
        WHERE table_type IN ('BASE TABLE', 'VIEW')
          AND table_schema NOT IN ('mysql','information_schema','performance_schema','sys')
        ORDER BY table_schema, table_name`)
	if err != nil {
		return s, err
	}
	s.Tables = tables

	for i := range s.Tables {
		t := &s.Tables[i]
		if err := readColumns(ctx, dbConn, t, `
            SELECT column_name, data_type, is_nullable = 'YES'
            FROM information_schema.columns
            WHERE table_schema = ? AND table_name = ?
            ORDER BY ordinal_position`, t.Schema, t.Name); err != nil {
			return s, err
		}
	}

	readForeignKeys(ctx, dbConn, &s, `
        SELECT table_schema, table_name, group_concat(column_name separator ', '),
               referenced_table_schema, referenced_table_name,
               group_concat(referenced_column_name separator ', '),
               constraint_name
        FROM information_schema.key_column_usage
        WHERE referenced_table_name IS NOT NULL
          AND table_schema NOT IN ('mysql','information_schema','performance_schema','sys')
        GROUP BY table_schema, table_name, referenced_table_schema, referenced_table_name, constraint_name`)
	return s, nil
}

func init() {
	db.Register("mysql", mysql{})
}
