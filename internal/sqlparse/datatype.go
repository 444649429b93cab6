package sqlparse

import (
	"strings"

	"github.com/MirseoDB/mirseodb/internal/table"
)

var integerTypes = map[string]bool{
	"INTEGER": true, "INT": true, "BIGINT": true, "SMALLINT": true, "TINYINT": true,
}

var floatTypes = map[string]bool{
	"FLOAT": true, "DOUBLE": true, "REAL": true, "DECIMAL": true, "NUMERIC": true,
	"NUMBER": true, "MONEY": true, "SMALLMONEY": true,
}

var textTypes = map[string]bool{
	"VARCHAR": true, "CHAR": true, "TEXT": true, "VARCHAR2": true, "NVARCHAR": true,
	"NVARCHAR2": true, "LONGTEXT": true, "MEDIUMTEXT": true, "TINYTEXT": true,
	"NTEXT": true, "NCHAR": true, "CLOB": true, "NCLOB": true, "STRING": true,
}

var boolTypes = map[string]bool{
	"BOOL": true, "BOOLEAN": true, "BIT": true,
}

// ParseDataType maps a SQL type name from any accepted dialect to a
// table.DataType. Type names may carry a parenthesized size/precision suffix
// (e.g. "VARCHAR(255)", "DECIMAL(10,2)"), which is stripped before
// lookup. Unknown types fall back to prefix heuristics and finally Text.
func ParseDataType(raw string) table.DataType {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if idx := strings.IndexByte(name, '('); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}

	switch {
	case integerTypes[name]:
		return table.Integer
	case floatTypes[name]:
		return table.Float
	case textTypes[name]:
		return table.Text
	case boolTypes[name]:
		return table.Boolean
	}

	switch {
	case strings.HasPrefix(name, "INT"):
		return table.Integer
	case strings.HasPrefix(name, "FLOAT"), strings.HasPrefix(name, "DOUBLE"), strings.HasPrefix(name, "DEC"), strings.HasPrefix(name, "NUM"):
		return table.Float
	case strings.HasPrefix(name, "BOOL"), strings.HasPrefix(name, "BIT"):
		return table.Boolean
	case strings.HasPrefix(name, "CHAR"), strings.HasPrefix(name, "VARCHAR"), strings.HasPrefix(name, "TEXT"), strings.HasPrefix(name, "CLOB"), strings.HasPrefix(name, "STRING"):
		return table.Text
	}

	return table.Text
}
