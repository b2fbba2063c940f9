package db_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"insights/internal/db"
	_ "insights/internal/db/dialects"
	"insights/internal/filter"
	"insights/internal/schema"
)

const fixture = `
CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE orders (
    id INTEGER PRIMARY KEY,
    status TEXT NOT NULL,
    total REAL,
    customer_id INTEGER REFERENCES customers(id)
);
INSERT INTO customers VALUES (1, 'Ada'), (2, 'Bob');
INSERT INTO orders VALUES (1, 'paid', 10, 1), (2, 'paid', 5, 2), (3, 'open', 7, 1);
`

// openFixture opens a sqlite file seeded with orders and customers and registers its
// introspected types.
func openFixture(t *testing.T) (*db.Connections, *schema.Registry) {
	t.Helper()
	conn, err := db.Open("main", "sqlite", filepath.Join(t.TempDir(), "shop.db"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.DB.Exec(fixture); err != nil {
		t.Fatal(err)
	}
	catalog, err := conn.Extract(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	reg := schema.NewRegistry()
	for _, typ := range catalog.Types() {
		reg.Register(typ)
	}
	conns := db.NewConnections("main")
	conns.Add(conn)
	t.Cleanup(func() { conns.Close() })
	return conns, reg
}

func resultType(reg *schema.Registry, t *testing.T, fields ...schema.Field) string {
	base, ok := reg.Type("orders")
	if !ok {
		t.Fatalf("\norders was not introspected, got %v", reg.IDs())
	}
	res := &schema.Type{ID: "orders.results", Name: "results", Super: base, Fields: fields}
	for _, f := range base.Fields {
		res.Restrict = append(res.Restrict, f.Name)
	}
	reg.Register(res)
	return res.ID
}

func TestExtractSqlite(t *testing.T) {
	_, reg := openFixture(t)
	orders, ok := reg.Type("orders")
	if !ok {
		t.Fatalf("\ngot types %v", reg.IDs())
	}
	fk, ok := orders.Lookup("customer_id")
	if !ok || fk.References == nil || *fk.References != (schema.Reference{TypeID: "customers", Field: "id"}) {
		t.Errorf("\ngot customer_id %+v", fk)
	}
	if total, _ := orders.Lookup("total"); total.Kind != schema.KindFloat || !total.Optional {
		t.Errorf("\ngot total %+v", total)
	}
	if status, _ := orders.Lookup("status"); status.Kind != schema.KindString || status.Optional {
		t.Errorf("\ngot status %+v", status)
	}
}

func TestSelect(t *testing.T) {
	conns, reg := openFixture(t)
	engine := db.NewEngine(conns, reg)
	revenue := resultType(reg, t,
		schema.Field{Name: "status", Kind: schema.KindString},
		schema.Field{Name: "revenue", Kind: schema.KindFloat, Calculation: "sum",
			Origin: &schema.Origin{TypeID: "orders", Field: "total"}},
	)
	one := 1

	res, err := engine.Select(context.Background(), db.SelectRequest{
		TypeID:     revenue,
		GroupBy:    []string{"status"},
		OrderBy:    []string{"revenue desc"},
		Limit:      &one,
		TotalCount: true,
	})
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	want := []schema.Record{{Names: []string{"status", "revenue"}, Values: []any{"paid", 15.0}}}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("\ngot rows %+v, wanted %+v", res.Rows, want)
	}
	if res.Total == nil || *res.Total != 2 {
		t.Errorf("\ngot total %v, wanted 2", res.Total)
	}

	res, err = engine.Select(context.Background(), db.SelectRequest{
		TypeID:  revenue,
		GroupBy: []string{"status"},
		Filters: []filter.Clause{{Origin: schema.Origin{TypeID: "orders", Field: "status"}, Operator: filter.Eq, Values: []any{"void"}}},
	})
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	if res.Rows == nil || len(res.Rows) != 0 || res.Total != nil {
		t.Errorf("\ngot %+v, wanted an empty result without total", res)
	}
}

func TestSelectForeignField(t *testing.T) {
	conns, reg := openFixture(t)
	engine := db.NewEngine(conns, reg)
	id := resultType(reg, t,
		schema.Field{Name: "customerName", Kind: schema.KindString,
			Origin: &schema.Origin{TypeID: "orders", Via: []string{"customer_id"}, Field: "name"}},
		schema.Field{Name: "orders", Kind: schema.KindLong, Calculation: "count",
			Origin: &schema.Origin{TypeID: "orders", Field: "id"}},
	)

	res, err := engine.Select(context.Background(), db.SelectRequest{
		TypeID:  id,
		GroupBy: []string{"customerName"},
		OrderBy: []string{"customerName"},
	})
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	want := []schema.Record{
		{Names: []string{"customerName", "orders"}, Values: []any{"Ada", int64(2)}},
		{Names: []string{"customerName", "orders"}, Values: []any{"Bob", int64(1)}},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("\ngot rows %+v, wanted %+v", res.Rows, want)
	}
}

func TestSelectInTransaction(t *testing.T) {
	conns, reg := openFixture(t)
	engine := db.NewEngine(conns, reg)
	id := resultType(reg, t, schema.Field{Name: "status", Kind: schema.KindString})
	ctx := context.Background()

	txID, err := conns.Begin(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Select(ctx, db.SelectRequest{ConnectionID: "main", TransactionID: txID, TypeID: id})
	if err != nil || len(res.Rows) != 3 {
		t.Errorf("\ngot %d rows, error %v", len(res.Rows), err)
	}
	if err := conns.Rollback(txID); err != nil {
		t.Fatal(err)
	}

	_, err = engine.Select(ctx, db.SelectRequest{TransactionID: txID, TypeID: id})
	if !errors.Is(err, db.ErrUnknownTransaction) {
		t.Errorf("\ngot %v, wanted ErrUnknownTransaction", err)
	}
	_, err = engine.Select(ctx, db.SelectRequest{ConnectionID: "replica", TypeID: id})
	if !errors.Is(err, db.ErrUnknownConnection) {
		t.Errorf("\ngot %v, wanted ErrUnknownConnection", err)
	}
}
