// Package testutil provides a stub database/sql driver for postgres store tests.
// It understands the handful of statement shapes the store issues: CREATE TABLE,
// INSERT with a composite ON CONFLICT upsert, and SELECT with an AND-joined
// equality WHERE clause.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

var registered atomic.Int64

// StubConn records normalized statements for the postgres store during tests.
type StubConn struct {
	mu         sync.Mutex
	Execs      []string
	Tables     map[string][]map[string]any
	FailPing   bool
	FailExec   bool
	FailBegin  bool
	FailQuery  bool
	FailCommit bool
	RowsErr    error
}

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Tables: make(map[string][]map[string]any)}
	name := fmt.Sprintf("stubpg%d_%d", time.Now().UnixNano(), registered.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Rows returns a copy of the rows stored in table.
func (c *StubConn) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.Tables[table]))
	for _, row := range c.Tables[table] {
		cp := make(map[string]any, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

// Statements returns the executed statements in order.
func (c *StubConn) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Execs...)
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(_ context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		return driver.RowsAffected(0), nil
	}
	ins, err := parseInsert(query)
	if err != nil {
		return nil, err
	}
	if len(ins.cols) != len(args) {
		return nil, fmt.Errorf("column/arg mismatch for %s", ins.table)
	}
	row := make(map[string]any, len(ins.cols))
	for i, col := range ins.cols {
		row[col] = args[i].Value
	}
	if len(ins.conflict) > 0 {
		for _, existing := range c.Tables[ins.table] {
			if matches(existing, ins.conflict, row) {
				for _, col := range ins.updates {
					existing[col] = row[col]
				}
				return driver.RowsAffected(1), nil
			}
		}
	}
	c.Tables[ins.table] = append(c.Tables[ins.table], row)
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailQuery {
		return nil, fmt.Errorf("query fail")
	}
	sel, err := parseSelect(query)
	if err != nil {
		return nil, err
	}
	if len(sel.where) != len(args) {
		return nil, fmt.Errorf("predicate/arg mismatch for %s", sel.table)
	}
	want := make(map[string]any, len(sel.where))
	for i, col := range sel.where {
		want[col] = args[i].Value
	}
	var values [][]driver.Value
	for _, row := range c.Tables[sel.table] {
		if !matches(row, sel.where, want) {
			continue
		}
		vals := make([]driver.Value, len(sel.cols))
		for i, col := range sel.cols {
			vals[i] = row[col]
		}
		values = append(values, vals)
	}
	return &stubRows{cols: sel.cols, rows: values, err: c.RowsErr}, nil
}

func matches(row map[string]any, cols []string, want map[string]any) bool {
	for _, col := range cols {
		if row[col] != want[col] {
			return false
		}
	}
	return true
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

type insertStmt struct {
	table    string
	cols     []string
	conflict []string
	updates  []string
}

func parseInsert(query string) (insertStmt, error) {
	up := strings.ToUpper(query)
	intoIdx := strings.Index(up, "INTO ")
	if intoIdx == -1 {
		return insertStmt{}, fmt.Errorf("cannot parse insert: %s", query)
	}
	rest := strings.TrimSpace(query[intoIdx+len("INTO "):])
	open := strings.Index(rest, "(")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return insertStmt{}, fmt.Errorf("cannot parse insert: %s", query)
	}
	stmt := insertStmt{
		table: strings.ToLower(strings.TrimSpace(rest[:open])),
		cols:  splitColumns(rest[open+1 : closeIdx]),
	}
	conflictIdx := strings.Index(up, "ON CONFLICT")
	if conflictIdx == -1 {
		return stmt, nil
	}
	tail := query[conflictIdx+len("ON CONFLICT"):]
	cOpen, cClose := strings.Index(tail, "("), strings.Index(tail, ")")
	if cOpen == -1 || cClose <= cOpen {
		return insertStmt{}, fmt.Errorf("cannot parse conflict target: %s", query)
	}
	stmt.conflict = splitColumns(tail[cOpen+1 : cClose])
	setIdx := strings.Index(strings.ToUpper(tail), " SET ")
	if setIdx == -1 {
		return stmt, nil
	}
	for _, assign := range strings.Split(tail[setIdx+len(" SET "):], ",") {
		lhs, _, ok := strings.Cut(assign, "=")
		if !ok {
			return insertStmt{}, fmt.Errorf("cannot parse assignment %q", assign)
		}
		stmt.updates = append(stmt.updates, strings.ToLower(strings.TrimSpace(lhs)))
	}
	return stmt, nil
}

type selectStmt struct {
	table string
	cols  []string
	where []string
}

func parseSelect(query string) (selectStmt, error) {
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select ") {
		return selectStmt{}, fmt.Errorf("cannot parse select: %s", query)
	}
	fromIdx := strings.Index(lower, " from ")
	if fromIdx == -1 {
		return selectStmt{}, fmt.Errorf("cannot parse select: %s", query)
	}
	stmt := selectStmt{cols: splitColumns(query[len("select "):fromIdx])}
	rest := strings.TrimSpace(lower[fromIdx+len(" from "):])
	if rest == "" {
		return selectStmt{}, fmt.Errorf("cannot parse select: %s", query)
	}
	stmt.table = strings.Fields(rest)[0]
	whereIdx := strings.Index(rest, " where ")
	if whereIdx == -1 {
		return stmt, nil
	}
	for _, pred := range strings.Split(rest[whereIdx+len(" where "):], " and ") {
		col, _, ok := strings.Cut(pred, "=")
		if !ok {
			return selectStmt{}, fmt.Errorf("cannot parse predicate %q", pred)
		}
		stmt.where = append(stmt.where, strings.TrimSpace(col))
	}
	return stmt, nil
}

func splitColumns(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, strings.ToLower(strings.TrimSpace(part)))
	}
	return out
}
