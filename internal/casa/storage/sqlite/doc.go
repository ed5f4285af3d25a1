// Package sqlite persists CASA analysis runs in SQLite.
//
// All SQL for analysis results lives here rather than in the domain layer
// packages, which stay free of database code. The schema is owned by the
// embedded golang-migrate migrations under migrations/.
package sqlite
