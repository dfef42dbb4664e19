package directory

import (
	"database/sql"
	"database/sql/driver"
	"io"
)

// fakeDriver is a minimal database/sql/driver.Driver that lets the
// directory tests drive real *sql.DB/*sql.Row plumbing — the same
// machinery production code uses — without a MySQL server, by routing
// every query through a test-supplied responder keyed on substring match.
type fakeDriver struct {
	responder func(query string, args []driver.Value) (cols []string, rows [][]driver.Value, err error)
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	return &fakeConn{driver: d}, nil
}

type fakeConn struct {
	driver *fakeDriver
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c, query: query}, nil
}
func (c *fakeConn) Close() error              { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

type fakeStmt struct {
	conn  *fakeConn
	query string
}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	_, _, err := s.conn.driver.responder(s.query, args)
	if err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	cols, rows, err := s.conn.driver.responder(s.query, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{cols: cols, rows: rows}, nil
}

type fakeRows struct {
	cols []string
	rows [][]driver.Value
	pos  int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

var testDriver = &fakeDriver{}

func init() {
	sql.Register("directorytest", testDriver)
}

// newTestClient builds a Client whose opener always dials the fake
// driver, with responder installed for the duration of one test.
func newTestClient(responder func(query string, args []driver.Value) (cols []string, rows [][]driver.Value, err error)) *Client {
	testDriver.responder = responder
	return &Client{
		mode: PerCall,
		dsn:  "fake",
		opener: func(dsn string) (sqlConn, error) {
			return sql.Open("directorytest", dsn)
		},
		logger: discardLogger(),
	}
}
