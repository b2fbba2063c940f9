package insight

import (
	"context"
	"sync"

	"insights/internal/db"
	"insights/internal/schema"
	"insights/pkg/config"
)

func shopTypes() *schema.Registry {
	reg := schema.NewRegistry()
	reg.Register(&schema.Type{ID: "Customer", Name: "Customer", Collection: "customers", Fields: []schema.Field{
		{Name: "id", Kind: schema.KindLong},
		{Name: "name", Kind: schema.KindString},
		{Name: "status", Kind: schema.KindString},
	}})
	reg.Register(&schema.Type{ID: "Order", Name: "Order", Collection: "orders", Fields: []schema.Field{
		{Name: "id", Kind: schema.KindLong},
		{Name: "status", Kind: schema.KindString},
		{Name: "total", Kind: schema.KindFloat},
		{Name: "paid", Kind: schema.KindBool},
		{Name: "tenant", Kind: schema.KindString},
		{Name: "shippedAt", Column: "shipped_at", Kind: schema.KindTime, Optional: true},
		{Name: "customerId", Column: "customer_id", Kind: schema.KindLong,
			References: &schema.Reference{TypeID: "Customer", Field: "id"}},
	}})
	return reg
}

// revenueConfig is the orders by status example.
func revenueConfig() config.InsightConfig {
	return config.InsightConfig{
		ID:       "shop.ordersByStatus",
		CoreType: "Order",
		Fields: []config.FieldConfig{
			{Key: "status", Aggregate: "group_by"},
			{Key: "total", Aggregate: "sum", Alias: "revenue"},
		},
	}
}

type fakeEngine struct {
	mu   sync.Mutex
	reqs []db.SelectRequest
	res  db.SelectResult
	err  error
}

func (f *fakeEngine) Select(ctx context.Context, req db.SelectRequest) (db.SelectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

func (f *fakeEngine) last() db.SelectRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reqs) == 0 {
		return db.SelectRequest{}
	}
	return f.reqs[len(f.reqs)-1]
}

func mustNew(t interface {
	Helper()
	Fatalf(string, ...any)
}, cfg config.InsightConfig, reg *schema.Registry, engine Engine) *Artifact {
	t.Helper()
	a, err := New(cfg, reg, engine)
	if err != nil {
		t.Fatalf("\ngot unexpected error: \"%v\"", err)
	}
	return a
}
