//go:build sentinel_statement

package orm

// statementFields enables "db.statement" recording by default.
const statementFields = true
