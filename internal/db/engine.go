package db

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"insights/internal/filter"
	"insights/internal/logger"
	"insights/internal/schema"
)

// SelectRequest is a filtered, grouped and paginated read of a registered type.
type SelectRequest struct {
	ConnectionID  string
	TransactionID string
	TypeID        string
	Offset        *int64
	Limit         *int
	OrderBy       []string
	TotalCount    bool
	Filters       []filter.Clause
	GroupBy       []string
}

// SelectResult holds the rows and, when requested, the row count without pagination.
type SelectResult struct {
	Rows  []schema.Record
	Total *int64
}

// Engine runs selects against the registered connections.
type Engine struct {
	conns *Connections
	types *schema.Registry
}

func NewEngine(conns *Connections, types *schema.Registry) *Engine {
	return &Engine{conns: conns, types: types}
}

// Select renders and runs req. The context bounds the query; the engine adds no timeout.
func (e *Engine) Select(ctx context.Context, req SelectRequest) (SelectResult, error) {
	var res SelectResult
	target, ok := e.types.Type(req.TypeID)
	if !ok {
		return res, errors.Errorf("unknown type %q", req.TypeID)
	}
	q, dialect, err := e.conns.querier(req.ConnectionID, req.TransactionID)
	if err != nil {
		return res, err
	}
	stmt, err := build(dialect, e.types, target, req)
	if err != nil {
		return res, errors.Wrapf(err, "build select of %s", req.TypeID)
	}
	logger.Debug("select %s: %s %v", req.TypeID, stmt.query, stmt.args)

	rows, err := q.QueryContext(ctx, stmt.query, stmt.args...)
	if err != nil {
		return res, errors.Wrapf(err, "select %s", req.TypeID)
	}
	if res.Rows, err = scan(rows, stmt.fields); err != nil {
		return res, errors.Wrapf(err, "scan %s", req.TypeID)
	}

	if req.TotalCount {
		var total int64
		if err := q.QueryRowContext(ctx, stmt.count, stmt.args...).Scan(&total); err != nil {
			return res, errors.Wrapf(err, "count %s", req.TypeID)
		}
		res.Total = &total
	}
	return res, nil
}

func scan(rows *sql.Rows, fields []schema.Field) ([]schema.Record, error) {
	defer rows.Close()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	records := []schema.Record{}
	for rows.Next() {
		raw := make([]any, len(fields))
		ptrs := make([]any, len(fields))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = f.Kind.Convert(raw[i])
		}
		records = append(records, schema.Record{Names: names, Values: values})
	}
	return records, rows.Err()
}
