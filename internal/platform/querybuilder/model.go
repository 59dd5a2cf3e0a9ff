package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
)

// InsertModel builds an INSERT over every exported db-tagged field of
// model. Repositories pass their row structs here so column lists never
// drift from the struct definitions; an upsert suffix rides along
// verbatim.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	cols, vals, err := modelColumns(model)
	if err != nil {
		return "", nil, err
	}
	return InsertInto(table).
		Columns(cols...).
		Values(vals...).
		Suffix(suffix).
		ToSQL()
}

func modelColumns(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("querybuilder: nil model")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("querybuilder: model must be a struct, got %s", value.Kind())
	}

	typ := value.Type()
	cols := make([]string, 0, typ.NumField())
	vals := make([]any, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if field.PkgPath != "" {
			continue
		}
		col := columnName(field.Tag.Get("db"))
		if col == "" {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, value.Field(i).Interface())
	}

	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("querybuilder: %s has no db-tagged columns", typ.Name())
	}
	return cols, vals, nil
}

// columnName strips sqlx tag options like ",omitempty" and treats "-"
// as not mapped.
func columnName(tag string) string {
	col := strings.TrimSpace(tag)
	if idx := strings.IndexByte(col, ','); idx >= 0 {
		col = strings.TrimSpace(col[:idx])
	}
	if col == "-" {
		return ""
	}
	return col
}
