//go:build !sentinel_statement

package orm

// statementFields keeps query text out of spans unless the module is built
// with the sentinel_statement tag.
const statementFields = false
