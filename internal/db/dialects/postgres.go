package dialects

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"insights/internal/db"
	"insights/internal/introspect"
)

// postgres renders SQL for PostgreSQL and reads its catalog from information_schema.
type postgres struct{}

func (postgres) Quote(ident string) string { return doubleQuote(ident) }

func (postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgres) Paginate(query string, _ bool, limit *int, offset *int64) string {
	return limitOffset(query, limit, offset, "")
}

func (postgres) Extract(ctx context.Context, dbConn *sql.DB) (introspect.Schema, error) {
	var s introspect.Schema
	tables, err := readTables(ctx, dbConn, `
        SELECT table_schema, table_name
        FROM information_schema.tables
        WHERE table_type IN ('BASE TABLE', 'VIEW')
          AND table_schema NOT IN ('pg_catalog','information_schema','pg_toast')
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
            WHERE table_schema = $1 AND table_name = $2
            ORDER BY ordinal_position`, t.Schema, t.Name); err != nil {
			return s, err
		}
	}

	readForeignKeys(ctx, dbConn, &s, `
        SELECT tc.table_schema, tc.table_name,
               string_agg(kcu.column_name, ', ' ORDER BY kcu.ordinal_position),
               rkcu.table_schema, rkcu.table_name,
               string_agg(rkcu.column_name, ', ' ORDER BY rkcu.ordinal_position),
               tc.constraint_name
        FROM information_schema.table_constraints tc
        JOIN information_schema.key_column_usage kcu
          ON tc.constraint_name = kcu.constraint_name AND tc.constraint_schema = kcu.constraint_schema
        JOIN information_schema.referential_constraints rc
          ON tc.constraint_name = rc.constraint_name AND tc.constraint_schema = rc.constraint_schema
        JOIN information_schema.key_column_usage rkcu
          ON rc.unique_constraint_name = rkcu.constraint_name
         AND rc.unique_constraint_schema = rkcu.constraint_schema
         AND kcu.ordinal_position = rkcu.ordinal_position
        WHERE tc.constraint_type = 'FOREIGN KEY'
          AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
        GROUP BY tc.table_schema, tc.table_name, rkcu.table_schema, rkcu.table_name, tc.constraint_name`)
	return s, nil
}

func init() {
	// lib/pq and the pgx stdlib adapter speak the same dialect.
	db.Register("postgres", postgres{})
	db.Register("pgx", postgres{})
}
