// Package migration applies the durable-store schema with golang-migrate
// from embedded SQL files. SQLite deployments (tests, single-node) use GORM
// AutoMigrate instead and skip this package. This package is internal and
// should not be imported by external projects.
package migration
