package filter

import "strings"

// Encoder converts filters to SQL conditions.
// Implementations handle dialect-specific syntax (DuckDB, PostgreSQL, etc.).
//
// An encoding never selects fewer rows than the filter matches. exact
// reports whether it selects precisely those rows; when it is false the
// caller must evaluate the filter on the returned rows.
type Encoder interface {
	// EncodeFilter converts f to a WHERE clause body without the "WHERE"
	// keyword. Returns an empty string if nothing can be encoded.
	EncodeFilter(f Filter) (sql string, exact bool)

	// Encode converts a single operation.
	// Returns empty string if the operation is unsupported.
	Encode(op Operation) (sql string, exact bool)
}

// EncoderOptions configures encoding behavior.
type EncoderOptions struct {
	// ColumnMapping maps property names to column names.
	// Properties not in the map use their local name.
	ColumnMapping map[string]string

	// ColumnExpressions maps property names to SQL expressions.
	// Takes precedence over ColumnMapping.
	// Use for computed columns or complex transformations.
	ColumnExpressions map[string]string

	// Spatial enables ST_* predicates. Requires the spatial extension.
	Spatial bool

	// GeometryColumn is tested by spatial operations without a property.
	GeometryColumn string

	// GeometryAsWKB wraps geometry columns in ST_GeomFromWKB.
	GeometryAsWKB bool

	// IDColumn is matched by identifier filters.
	IDColumn string

	// TextColumns names VARCHAR columns, by property name or column name.
	// Text equality, Like and identifier filters compare the text form of
	// a column, which matches evaluation only for text columns; on other
	// columns they are left to evaluation.
	TextColumns map[string]bool
}

// escapeString escapes single quotes in a string value for SQL.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// quoteLiteral returns a SQL string literal with proper escaping.
func quoteLiteral(s string) string {
	return "'" + escapeString(s) + "'"
}

// QuoteIdentifier returns name quoted for use as an identifier if needed.
// DuckDB uses double quotes for identifiers.
func QuoteIdentifier(name string) string {
	if needsQuoting(name) {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return name
}

// needsQuoting returns true if the identifier needs quoting.
func needsQuoting(name string) bool {
	if len(name) == 0 {
		return true
	}

	// Check first character (must be letter or underscore)
	c := name[0]
	if !isLetter(c) && c != '_' {
		return true
	}

	// Check remaining characters (letters, digits, or underscore)
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLetter(c) && !isDigit(c) && c != '_' {
			return true
		}
	}

	// Check for reserved words (simplified list)
	switch strings.ToUpper(name) {
	case "SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "TRUE", "FALSE",
		"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER", "TABLE", "INDEX",
		"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "IN", "IS", "LIKE",
		"BETWEEN", "EXISTS", "CASE", "WHEN", "THEN", "ELSE", "END", "ORDER", "BY",
		"GROUP", "HAVING", "LIMIT", "OFFSET", "UNION", "EXCEPT", "INTERSECT",
		"ALL", "DISTINCT", "VALUES", "SET", "INTO", "PRIMARY", "KEY", "FOREIGN",
		"REFERENCES", "CONSTRAINT", "DEFAULT", "CHECK", "UNIQUE", "ASC", "DESC",
		"NULLS", "FIRST", "LAST", "CAST", "INTERVAL", "DATE", "TIME", "TIMESTAMP",
		"GEOMETRY":
		return true
	}

	return false
}

// isLetter returns true if c is an ASCII letter.
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// isDigit returns true if c is an ASCII digit.
func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
