package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrUnknownConnection  = errors.New("unknown connection")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type transaction struct {
	conn *Connection
	tx   *sql.Tx
}

// Connections holds the open connections by id and the transactions started on them.
// It is safe for concurrent use.
type Connections struct {
	mu        sync.RWMutex
	defaultID string
	conns     map[string]*Connection
	txs       map[string]*transaction
}

// NewConnections returns an empty set; requests without a connection id use defaultID.
func NewConnections(defaultID string) *Connections {
	return &Connections{
		defaultID: defaultID,
		conns:     make(map[string]*Connection),
		txs:       make(map[string]*transaction),
	}
}

// Add registers conn under its id, replacing an earlier one.
func (c *Connections) Add(conn *Connection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn.ID] = conn
}

// Get returns the connection with id, or the default connection for an empty id.
func (c *Connections) Get(id string) (*Connection, error) {
	if id == "" {
		id = c.defaultID
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConnection, id)
	}
	return conn, nil
}

// Begin starts a transaction on the connection and returns its id.
func (c *Connections) Begin(ctx context.Context, connectionID string) (string, error) {
	conn, err := c.Get(connectionID)
	if err != nil {
		return "", err
	}
	tx, err := conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	c.mu.Lock()
	c.txs[id] = &transaction{conn: conn, tx: tx}
	c.mu.Unlock()
	return id, nil
}

// Exec runs a statement inside the transaction, for callers that write before reading
// through the engine.
func (c *Connections) Exec(ctx context.Context, transactionID, query string, args ...any) error {
	c.mu.RLock()
	t, ok := c.txs[transactionID]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransaction, transactionID)
	}
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

func (c *Connections) take(id string) (*transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTransaction, id)
	}
	delete(c.txs, id)
	return t, nil
}

// Commit commits and forgets the transaction.
func (c *Connections) Commit(id string) error {
	t, err := c.take(id)
	if err != nil {
		return err
	}
	return t.tx.Commit()
}

// Rollback rolls back and forgets the transaction.
func (c *Connections) Rollback(id string) error {
	t, err := c.take(id)
	if err != nil {
		return err
	}
	return t.tx.Rollback()
}

// querier resolves where a statement runs: inside the transaction when one is given,
// otherwise on the connection pool.
func (c *Connections) querier(connectionID, transactionID string) (querier, Dialect, error) {
	if transactionID != "" {
		c.mu.RLock()
		t, ok := c.txs[transactionID]
		c.mu.RUnlock()
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownTransaction, transactionID)
		}
		if connectionID != "" && connectionID != t.conn.ID {
			return nil, nil, fmt.Errorf("transaction %q belongs to connection %q, not %q", transactionID, t.conn.ID, connectionID)
		}
		return t.tx, t.conn.Dialect, nil
	}
	conn, err := c.Get(connectionID)
	if err != nil {
		return nil, nil, err
	}
	return conn.DB, conn.Dialect, nil
}

// Close rolls back open transactions and closes every connection.
func (c *Connections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for id, t := range c.txs {
		if err := t.tx.Rollback(); err != nil {
			errs = append(errs, err)
		}
		delete(c.txs, id)
	}
	for id, conn := range c.conns {
		if err := conn.DB.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.conns, id)
	}
	return errors.Join(errs...)
}
