// Package render renders trajectory diagnostics for an analysis result: a
// static PNG of every track coloured by motility class, and an interactive
// HTML page with per-class scatter and class counts.
package render
