package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"insights/internal/introspect"
	"insights/pkg/config"
)

// Dialect renders SQL for one database flavour and reads its catalog.
type Dialect interface {
	// Quote quotes an identifier.
	Quote(ident string) string
	// Placeholder returns the bind parameter for the n-th argument, starting at 1.
	Placeholder(n int) string
	// Paginate appends limit and offset to query. Ordered reports whether the query
	// already has an ORDER BY.
	Paginate(query string, ordered bool, limit *int, offset *int64) string

	// Extract takes a database connection and returns its catalog
	Extract(ctx context.Context, db *sql.DB) (introspect.Schema, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// Register makes a Dialect available under a driver name.
func Register(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(name)] = d
}

// listRegistered returns the registered dialect keys (for diagnostics).
func listRegistered() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	keys := make([]string, 0, len(dialects))
	for k := range dialects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Lookup returns the dialect registered for driver.
func Lookup(driver string) (Dialect, error) {
	driver = config.NormalizeDriver(driver)
	dialectsMu.RLock()
	d, ok := dialects[driver]
	dialectsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dialect not registered: %q (available: %v)", driver, listRegistered())
	}
	return d, nil
}

// RegisteredDialects is a helper that allows main to print registered dialects
func RegisteredDialects() []string {
	return listRegistered()
}

// Connection is an open database with the dialect used to talk to it.
type Connection struct {
	ID      string
	Driver  string
	DB      *sql.DB
	Dialect Dialect
}

// Open connects to the database and verifies it answers within timeoutSec.
func Open(id, driver, dsn string, timeoutSec int) (*Connection, error) {
	driver = config.NormalizeDriver(driver)
	dialect, err := Lookup(driver)
	if err != nil {
		return nil, err
	}
	dbConn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := dbConn.PingContext(ctx); err != nil {
		dbConn.Close()
		return nil, err
	}
	return &Connection{ID: id, Driver: driver, DB: dbConn, Dialect: dialect}, nil
}

// Extract reads the catalog of the connection.
func (c *Connection) Extract(ctx context.Context) (introspect.Schema, error) {
	return c.Dialect.Extract(ctx, c.DB)
}
