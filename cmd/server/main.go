package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"maps"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"insights/internal/auth"
	"insights/internal/db"
	_ "insights/internal/db/dialects"
	"insights/internal/insight"
	"insights/internal/introspect"
	"insights/internal/logger"
	"insights/internal/ratelimit"
	"insights/internal/schema"
	"insights/internal/web"
	"insights/pkg/config"
)

const defaultConnection = "default"

var defaultPort = 8080

// openConnections opens the database section under defaultConnection plus every named
// connection, registering the types of those that ask for introspection.
func openConnections(cfg config.AppConfig, timeout int, types *schema.Registry) (*db.Connections, error) {
	conns := db.NewConnections(defaultConnection)
	dbCfgs := make(map[string]config.DBConfig, len(cfg.Connections)+1)
	maps.Copy(dbCfgs, cfg.Connections)
	if cfg.Database.Type != "" {
		dbCfgs[defaultConnection] = cfg.Database
	}

	for _, id := range slices.Sorted(maps.Keys(dbCfgs)) {
		dbCfg := dbCfgs[id]
		driver, dsn, err := config.BuildDriverAndDSN(dbCfg)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("connection %s: %w", id, err)
		}
		conn, err := db.Open(id, driver, dsn, timeout)
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("connection %s: %w", id, err)
		}
		conns.Add(conn)
		logger.Info("connection %s: %s", id, driver)

		if !dbCfg.Introspect {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
		catalog, err := conn.Extract(ctx)
		cancel()
		if err != nil {
			conns.Close()
			return nil, fmt.Errorf("connection %s: extract schema: %w", id, err)
		}
		for _, t := range catalog.Types() {
			types.Register(t)
		}
		logger.Info("connection %s: %d tables introspected", id, len(catalog.Tables))
	}
	return conns, nil
}

// rulesByAction turns the role -> actions config into the action -> roles rules.
func rulesByAction(perms map[string][]string) *auth.Rules {
	byAction := make(map[string][]string)
	for role, actions := range perms {
		for _, action := range actions {
			byAction[action] = append(byAction[action], role)
		}
	}
	return auth.NewRules(byAction)
}

func newApplication(cfg config.AppConfig) *web.Application {
	app := web.NewApplication(cfg.Application)
	if len(cfg.Users) > 0 {
		app.Authenticator = auth.NewUsers(cfg.Users)
	}
	rules := rulesByAction(cfg.Application.Permissions)
	app.Roles = rules
	if len(cfg.Application.Permissions) > 0 {
		app.Permissions = rules
		app.PotentialPermission = rules
	}
	if limiter := ratelimit.New(cfg.Application.RateLimit); limiter != nil {
		app.RateLimiter = limiter
	}
	return app
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding response: %v", err)
	}
}

func main() {
	// flags
	cfgPath := flag.String("config", filepath.Join(".", "configs", "insights.yaml"), "path to config YAML")
	driverFlag := flag.String("driver", "", "db driver override (postgres,pgx,mysql,sqlite,sqlserver,godror)")
	dsnFlag := flag.String("dsn", "", "dsn override")
	port := flag.Int("port", 0, "http port (overrides config, default"+fmt.Sprintf(" %d)", defaultPort))
	timeout := flag.Int("timeout", 10, "db connect timeout seconds")
	logLevel := flag.String("log-level", "", "log level override (debug,info,warn,error)")
	flag.Parse()

	logger.Info("config file %s", *cfgPath)
	appCfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		logger.Fatal("error reading config file: %v", err)
	}

	level, err := logger.ParseLevel(cmp.Or(*logLevel, appCfg.Server.LogLevel))
	if err != nil {
		logger.Error("%v, keeping info", err)
	}
	logger.SetLevel(level)

	// allow CLI overrides
	if *driverFlag != "" && *dsnFlag != "" {
		appCfg.Database = config.DBConfig{Type: *driverFlag, DSN: *dsnFlag, Introspect: appCfg.Database.Introspect}
	}
	*port = cmp.Or(*port, appCfg.Server.Port, defaultPort)
	logger.Info("registered dialects: %v", db.RegisteredDialects())

	types := schema.NewRegistry()
	declared, err := introspect.Declared(appCfg.Types)
	if err != nil {
		logger.Fatal("error reading types: %v", err)
	}
	for _, t := range declared {
		types.Register(t)
	}
	conns, err := openConnections(appCfg, *timeout, types)
	if err != nil {
		logger.Fatal("%v", err)
	}
	engine := db.NewEngine(conns, types)

	app := newApplication(appCfg)
	var artifacts []*insight.Artifact
	for _, ic := range appCfg.Insights {
		a, err := insight.New(ic, types, engine)
		if err != nil {
			logger.Error("skipping insight: %v", err)
			continue
		}
		if err := a.Start(app, "/"); err != nil {
			logger.Error("%v", err)
			continue
		}
		artifacts = append(artifacts, a)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/insights", func(w http.ResponseWriter, req *http.Request) {
		descriptions := make([]insight.Description, 0, len(artifacts))
		for _, a := range artifacts {
			descriptions = append(descriptions, a.Describe(app.ServerPath))
		}
		writeJSON(w, descriptions)
	}).Methods(http.MethodGet)
	r.PathPrefix(app.ServerPath).Handler(app)

	// HTTP server
	addr := fmt.Sprintf(":%d", *port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		logger.Info("listening on %s, %d insights below %s", addr, len(artifacts), app.ServerPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("%v", err)
		}
	}()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
	for _, a := range artifacts {
		a.Stop(app, "/")
	}
	// rolls back transactions still open
	if err := conns.Close(); err != nil {
		logger.Error("closing connections: %v", err)
	}
}
