// Package database opens and manages the GORM connection backing the durable
// conversation store. Driver selection (postgres, mysql, sqlite) comes from
// configuration; sqlite uses the pure-Go driver so tests need no cgo.
// This package is internal and should not be imported by external projects.
package database
