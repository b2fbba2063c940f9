package dialects

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"insights/internal/db"
	"insights/internal/introspect"
)

type mssql struct{}

func (mssql) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (mssql) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// Paginate uses OFFSET/FETCH, which SQL Server only accepts after an ORDER BY.
func (mssql) Paginate(query string, ordered bool, limit *int, offset *int64) string {
	if limit == nil && offset == nil {
		return query
	}
	if !ordered {
		query += " ORDER BY (SELECT NULL)"
	}
	return offsetFetch(query, limit, offset)
}

func (mssql) Extract(ctx context.Context, dbConn *sql.DB) (introspect.Schema, error) {
	var s introspect.Schema
	tables, err := readTables(ctx, dbConn, `
        SELECT TABLE_SCHEMA, TABLE_NAME
        FROM INFORMATION_SCHEMA.TABLES
        WHERE TABLE_TYPE IN ('BASE TABLE', 'VIEW')
        ORDER BY TABLE_SCHEMA, TABLE_NAME`)
	if err != nil {
		return s, err
	}
	s.Tables = tables

	for i := range s.Tables {
		t := &s.Tables[i]
		if err := readColumns(ctx, dbConn, t, `
            SELECT COLUMN_NAME, DATA_TYPE, CASE WHEN IS_NULLABLE='YES' THEN 1 ELSE 0 END
            FROM INFORMATION_SCHEMA.COLUMNS
            WHERE TABLE_SCHEMA = @schema AND TABLE_NAME = @table
            ORDER BY ORDINAL_POSITION`, sql.Named("schema", t.Schema), sql.Named("table", t.Name)); err != nil {
			return s, err
		}
	}

	readForeignKeys(ctx, dbConn, &s, `
        SELECT OBJECT_SCHEMA_NAME(fkc.parent_object_id), OBJECT_NAME(fkc.parent_object_id),
               STRING_AGG(c.NAME, ', '),
               OBJECT_SCHEMA_NAME(fkc.referenced_object_id), OBJECT_NAME(fkc.referenced_object_id),
               STRING_AGG(rc.NAME, ', '),
               fk.name
        FROM sys.foreign_keys fk
        JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
        JOIN sys.columns c ON fkc.parent_object_id = c.object_id AND fkc.parent_column_id = c.column_id
        JOIN sys.columns rc ON fkc.referenced_object_id = rc.object_id AND fkc.referenced_column_id = rc.column_id
        GROUP BY fk.name, fkc.parent_object_id, fkc.referenced_object_id`)
	return s, nil
}

func init() {
	db.Register("sqlserver", mssql{})
}
