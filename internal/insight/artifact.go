// Package insight implements configurable aggregation queries exposed as GET endpoints.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"insights/internal/db"
	"insights/internal/filter"
	"insights/internal/logger"
	"insights/internal/schema"
	"insights/internal/web"
	"insights/pkg/config"
)

// Engine runs the selects of an insight.
type Engine interface {
	Select(ctx context.Context, req db.SelectRequest) (db.SelectResult, error)
}

// Artifact is one configured insight. Its derived types are built on first use and
// stable for its lifetime.
type Artifact struct {
	id      string
	cfg     config.InsightConfig
	base    *schema.Type
	types   *schema.Registry
	engine  Engine
	fields  []FieldSpec
	filters []filter.Spec

	foreign func() *schema.Type
	result  func() *schema.Type
	input   func() *schema.Type
	output  func() *schema.Type

	mu            sync.Mutex
	subscriptions map[string]*web.Subscription
}

// New validates cfg against the registered types. Fields and filters naming unknown keys
// are not an error: they are left out of the derived types.
func New(cfg config.InsightConfig, types *schema.Registry, engine Engine) (*Artifact, error) {
	if cfg.ID == "" {
		return nil, errors.New("insight without id")
	}
	base, ok := types.Type(cfg.CoreType)
	if !ok {
		return nil, fmt.Errorf("insight %s: unknown core type %q", cfg.ID, cfg.CoreType)
	}
	a := &Artifact{
		id:            cfg.ID,
		cfg:           cfg,
		base:          base,
		types:         types,
		engine:        engine,
		subscriptions: make(map[string]*web.Subscription),
	}
	for _, fc := range cfg.Fields {
		agg, err := ParseAggregate(fc.Aggregate)
		if err != nil {
			return nil, fmt.Errorf("insight %s: field %q: %w", cfg.ID, fc.Key, err)
		}
		a.fields = append(a.fields, FieldSpec{Key: fc.Key, Alias: normalizeAlias(fc.Key, fc.Alias), Aggregate: agg})
	}
	for _, fc := range cfg.Filters {
		a.filters = append(a.filters, filter.FromConfig(fc))
	}

	a.foreign = sync.OnceValue(func() *schema.Type {
		return buildForeign(a.base, a.cfg.ForeignFields, a.types)
	})
	a.result = sync.OnceValue(func() *schema.Type {
		t := buildResult(a.id, a.base, a.fields, a.foreign())
		a.types.Register(t)
		return t
	})
	a.input = sync.OnceValue(func() *schema.Type {
		return buildInput(a.id, a.base, a.filters, a.foreign())
	})
	a.output = sync.OnceValue(func() *schema.Type {
		return buildOutput(a.id, a.result())
	})
	return a, nil
}

func (a *Artifact) ID() string { return a.id }

// Name is the configured name, or the last dot separated segment of the id.
func (a *Artifact) Name() string {
	if name := strings.TrimSpace(a.cfg.Name); name != "" {
		return name
	}
	return a.id[strings.LastIndex(a.id, ".")+1:]
}

func (a *Artifact) Result() *schema.Type { return a.result() }

func (a *Artifact) Input() *schema.Type { return a.input() }

func (a *Artifact) Output() *schema.Type { return a.output() }

// GroupBy returns the result fields the engine groups on: those without an aggregate or
// with group_by.
func (a *Artifact) GroupBy() []string {
	result := a.result()
	var keys []string
	for _, spec := range a.fields {
		if spec.Aggregate.Calculated() {
			continue
		}
		if _, ok := result.Own(spec.Name()); ok {
			keys = append(keys, spec.Name())
		}
	}
	return keys
}

// resolveFilter maps a filter key to the column it reads.
func (a *Artifact) resolveFilter(key string) (schema.Origin, bool) {
	f, imported, ok := resolve(a.base, a.foreign(), key)
	if !ok {
		return schema.Origin{}, false
	}
	if imported {
		return *f.Origin, true
	}
	return schema.Origin{TypeID: a.base.ID, Field: key}, true
}

// PermissionAction is the action callers need permission for.
func (a *Artifact) PermissionAction() string {
	return "insight." + a.Name()
}

func (a *Artifact) Permissions() []string {
	return []string{a.PermissionAction()}
}

// HasSecurityContextFilter reports whether an equality filter reads the security context
// field, which moves its value into the path.
func (a *Artifact) HasSecurityContextFilter() bool {
	field := a.cfg.SecurityContextField
	if field == "" {
		return false
	}
	for _, f := range a.filters {
		if f.Key == field && f.Operator == filter.Eq {
			return true
		}
	}
	return false
}

// securityContextName returns the input name of the filter on the security context field,
// provided that field exists.
func (a *Artifact) securityContextName() string {
	field := a.cfg.SecurityContextField
	if field == "" {
		return ""
	}
	if _, _, ok := resolve(a.base, a.foreign(), field); !ok {
		return ""
	}
	for _, f := range a.filters {
		if f.Key == field {
			return f.Name()
		}
	}
	return ""
}

// Path is the endpoint template below the mount point.
func (a *Artifact) Path() string {
	if a.HasSecurityContextFilter() {
		return web.JoinPath(a.cfg.BasePath, "{contextId}", a.Name())
	}
	return web.JoinPath(a.cfg.BasePath, a.Name())
}

// QueryParameters lists what callers can pass in the query string. The security context
// filter is left out, it comes from the path.
func (a *Artifact) QueryParameters() []schema.Field {
	params := []schema.Field{
		{Name: "limit", Kind: schema.KindInt, Optional: true},
		{Name: "offset", Kind: schema.KindLong, Optional: true},
		{Name: "orderBy", Kind: schema.KindString, Optional: true, List: true},
		{Name: "totalCount", Kind: schema.KindBool, Optional: true},
	}
	group := a.filterGroup()
	if group == nil {
		return params
	}
	skip := a.securityContextName()
	for _, f := range group.Fields {
		if f.Name != skip {
			params = append(params, f)
		}
	}
	return params
}

func (a *Artifact) filterGroup() *schema.Type {
	if f, ok := a.input().Own("filter"); ok {
		return f.Complex
	}
	return nil
}

func key(app *web.Application, path string) string {
	return app.ID + ":" + path
}

// Start mounts the insight on app below path. Starting again under the same application
// and path replaces the earlier mount.
func (a *Artifact) Start(app *web.Application, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(app, path)
	if sub, ok := a.subscriptions[k]; ok {
		sub.Unsubscribe()
		delete(a.subscriptions, k)
	}
	parent := web.JoinPath(app.ServerPath, path)
	l, err := newListener(app, a, parent)
	if err != nil {
		return fmt.Errorf("insight %s: %w", a.id, err)
	}
	restPath := web.JoinPath(parent, a.cfg.BasePath)
	a.subscriptions[k] = app.Dispatcher.Subscribe(l, web.PrefixFilter(restPath))
	logger.Info("insight %s: GET %s", a.id, web.JoinPath(parent, a.Path()))
	return nil
}

func (a *Artifact) Stop(app *web.Application, path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key(app, path)
	if sub, ok := a.subscriptions[k]; ok {
		sub.Unsubscribe()
		delete(a.subscriptions, k)
	}
}

func (a *Artifact) IsStarted(app *web.Application, path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.subscriptions[key(app, path)]
	return ok
}
