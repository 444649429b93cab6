package sqlparse

import (
	"strconv"
	"strings"

	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// ParseValue recognizes NULL, TRUE/FALSE (case-insensitive), single/
// double/backtick-quoted text, floating-point (presence of '.'), integer,
// else text fallback.
func ParseValue(raw string) value.Value {
	s := strings.TrimSpace(raw)
	upper := strings.ToUpper(s)

	switch upper {
	case "NULL":
		return value.Null()
	case "TRUE":
		return value.Bool(true)
	case "FALSE":
		return value.Bool(false)
	}

	if unquoted, ok := unquote(s, '\''); ok {
		return value.Text(unquoted)
	}
	if unquoted, ok := unquote(s, '"'); ok {
		return value.Text(unquoted)
	}
	if unquoted, ok := unquote(s, '`'); ok {
		return value.Text(unquoted)
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return value.Float(f)
		}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}

	return value.Text(s)
}

func unquote(s string, q byte) (string, bool) {
	if len(s) >= 2 && s[0] == q && s[len(s)-1] == q {
		return s[1 : len(s)-1], true
	}
	return "", false
}

// CoerceToColumnType checks that a parsed value matches a column's
// declared type and returns InvalidDataType otherwise. MirseoDB does not
// perform implicit coercion: inserting the text 'NaN' into a Float
// column fails rather than silently becoming NaN.
func CoerceToColumnType(v value.Value, want value.Type, nullable bool) (value.Value, error) {
	if v.IsNull() {
		if nullable {
			return v, nil
		}
		return v, dberr.New(dberr.InvalidDataType, "NULL not allowed for non-nullable column")
	}
	if v.Tag != want {
		return v, dberr.New(dberr.InvalidDataType, "expected %s, got %s", want, v.Tag)
	}
	return v, nil
}
