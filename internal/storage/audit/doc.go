// Package audit persists one record per assistant dispatch. Records are
// written to a JSON lines file by default, or to MySQL, PostgreSQL or SQLite
// through database/sql.
package audit
