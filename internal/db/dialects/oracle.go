//go:build oracle
// +build oracle

package dialects

// godror needs cgo and the Oracle client libraries; build with -tags oracle.

import (
	"context"
	"database/sql"
	"strconv"

	_ "github.com/godror/godror"

	"insights/internal/db"
	"insights/internal/introspect"
)

type oracle struct{}

func (oracle) Quote(ident string) string { return doubleQuote(ident) }

func (oracle) Placeholder(n int) string { return ":" + strconv.Itoa(n) }

func (oracle) Paginate(query string, _ bool, limit *int, offset *int64) string {
	return offsetFetch(query, limit, offset)
}

func (oracle) Extract(ctx context.Context, dbConn *sql.DB) (introspect.Schema, error) {
	var s introspect.Schema
	tables, err := readTables(ctx, dbConn, `
        SELECT t.owner, t.table_name
        FROM all_tables t
        JOIN all_users u ON u.username = t.owner
        WHERE u.oracle_maintained = 'N'
        ORDER BY t.owner, t.table_name`)
	if err != nil {
		return s, err
	}
	s.Tables = tables

	for i := range s.Tables {
		t := &s.Tables[i]
		if err := readColumns(ctx, dbConn, t, `
            SELECT column_name, data_type, CASE WHEN nullable = 'Y' THEN 1 ELSE 0 END
            FROM all_tab_columns
            WHERE owner = :1 AND table_name = :2
            ORDER BY column_id`, t.Schema, t.Name); err != nil {
			return s, err
		}
	}

	readForeignKeys(ctx, dbConn, &s, `
        SELECT a.owner, a.table_name,
               listagg(acc.column_name, ', ') within group (order by acc.position),
               rcc.owner, rcc.table_name,
               listagg(rcc.column_name, ', ') within group (order by rcc.position),
               a.constraint_name
        FROM all_users ausr
        JOIN all_constraints a ON ausr.username = a.owner
        JOIN all_cons_columns acc ON a.owner = acc.owner AND a.constraint_name = acc.constraint_name
        JOIN all_cons_columns rcc
          ON a.r_owner = rcc.owner
         AND a.r_constraint_name = rcc.constraint_name
         AND nvl(acc.position, 0) = nvl(rcc.position, 0)
        WHERE a.constraint_type = 'R' AND ausr.oracle_maintained = 'N'
        GROUP BY a.owner, a.table_name, rcc.owner, rcc.table_name, a.constraint_name`)
	return s, nil
}

func init() {
	db.Register("godror", oracle{})
}
