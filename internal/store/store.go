// Package store loads a complete gallery metadata graph from a
// Gallery2 relational database.
//
// The loader never resolves relationships per node: it issues one bulk
// SELECT per table into id-keyed maps and wires the whole graph in a
// single assemble pass, so a gallery with thousands of items costs a
// fixed number of round trips.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Drivers accepted by Open. Live Gallery2 installs are MySQL; sqlite
// serves offline copies of the schema and the tests.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Open connects to the gallery database and verifies the connection.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s database: %w", driver, err)
	}
	return db, nil
}
