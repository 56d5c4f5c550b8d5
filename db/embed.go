// Package db provides embedded database schema and catalog seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Products is the embedded catalog seed, a JSON array of product
// descriptors used by the in-memory catalog and the seed tooling.
//
//go:embed seed/products.json
var Products []byte
