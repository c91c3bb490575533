package storage

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"modernc.org/sqlite"
)

// SQLite's LIKE and lower() only fold ASCII letters. Searches compare
// fold(column) against a pattern folded by foldCase, so "über" finds "Über".
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("fold", 1, foldFunc); err != nil {
		panic(fmt.Sprintf("registering fold: %v", err))
	}
}

func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return foldCase(v), nil
	case []byte:
		return foldCase(string(v)), nil
	default:
		return foldCase(fmt.Sprint(v)), nil
	}
}

func foldCase(s string) string {
	return strings.ToLower(s)
}
