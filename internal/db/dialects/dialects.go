// Package dialects registers the SQL dialects of the supported databases. Import it for
// its side effects.
package dialects

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"insights/internal/introspect"
	"insights/internal/logger"
)

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// limitOffset appends LIMIT/OFFSET. Databases that cannot take an OFFSET alone pass the
// literal meaning "no limit" as unbounded.
func limitOffset(query string, limit *int, offset *int64, unbounded string) string {
	switch {
	case limit != nil:
		query += " LIMIT " + strconv.Itoa(*limit)
	case offset != nil && unbounded != "":
		query += " LIMIT " + unbounded
	}
	if offset != nil {
		query += " OFFSET " + strconv.FormatInt(*offset, 10)
	}
	return query
}

// offsetFetch appends the standard OFFSET ... FETCH clause.
func offsetFetch(query string, limit *int, offset *int64) string {
	if limit == nil && offset == nil {
		return query
	}
	var o int64
	if offset != nil {
		o = *offset
	}
	query += " OFFSET " + strconv.FormatInt(o, 10) + " ROWS"
	if limit != nil {
		query += " FETCH NEXT " + strconv.Itoa(*limit) + " ROWS ONLY"
	}
	return query
}

// readTables scans (schema, name) rows.
func readTables(ctx context.Context, dbConn *sql.DB, query string) ([]introspect.Table, error) {
	tr, err := dbConn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer tr.Close()

	var tables []introspect.Table
	for tr.Next() {
		var tab introspect.Table
		if err := tr.Scan(&tab.Schema, &tab.Name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, tab)
	}
	return tables, tr.Err()
}

// readColumns scans (name, type, nullable) rows into t.
func readColumns(ctx context.Context, dbConn *sql.DB, t *introspect.Table, query string, args ...any) error {
	cr, err := dbConn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query columns for %s.%s: %w", t.Schema, t.Name, err)
	}
	defer cr.Close()
	for cr.Next() {
		var col introspect.Column
		if err := cr.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			return fmt.Errorf("scan column for %s.%s: %w", t.Schema, t.Name, err)
		}
		t.Columns = append(t.Columns, col)
	}
	return cr.Err()
}

// readForeignKeys scans (from schema, table, column, to schema, table, column, name) rows.
// Failures are logged: a catalog without relations is still usable.
func readForeignKeys(ctx context.Context, dbConn *sql.DB, s *introspect.Schema, query string) {
	fkr, err := dbConn.QueryContext(ctx, query)
	if err != nil {
		logger.Error("query foreign key: %v", err)
		return
	}
	defer fkr.Close()
	for fkr.Next() {
		var fk introspect.ForeignKey
		if err := fkr.Scan(&fk.FromSchema, &fk.FromTable, &fk.FromColumn, &fk.ToSchema, &fk.ToTable, &fk.ToColumn, &fk.Constraint); err == nil {
			s.ForeignKeys = append(s.ForeignKeys, fk)
		} else {
			logger.Error("scan foreign key: %v", err)
		}
	}
}
