package export

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/samber/lo"
)

//go:embed schema/parquet_schema.json
var schemaJSON []byte

// tableSchema mirrors schema/parquet_schema.json. It documents the export
// layout for readers of the file and is checked against GameRecord's tags
// before anything is written.
type tableSchema struct {
	Name    string   `json:"name"`
	Columns []column `json:"fields"`
}

// column is a primitive column when Type is a JSON string, or a repeated
// group when Type is a list of structs.
type column struct {
	Name     string          `json:"name"`
	Type     json.RawMessage `json:"type"`
	Nullable bool            `json:"nullable"`
}

type listType struct {
	Type    string `json:"type"`
	Element struct {
		Type    string   `json:"type"`
		Columns []column `json:"fields"`
	} `json:"element"`
}

func parseSchema(data []byte) (tableSchema, error) {
	var schema tableSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return tableSchema{}, fmt.Errorf("parse parquet schema: %w", err)
	}
	return schema, nil
}

func (s tableSchema) check(record reflect.Type) error {
	return checkColumns(s.Name, s.Columns, record)
}

// elements returns the nested columns of a list column. ok is false for
// primitive columns.
func (c column) elements() (cols []column, ok bool, err error) {
	var primitive string
	if json.Unmarshal(c.Type, &primitive) == nil {
		return nil, false, nil
	}
	var list listType
	if err := json.Unmarshal(c.Type, &list); err != nil {
		return nil, false, err
	}
	if list.Type != "list" || list.Element.Type != "struct" {
		return nil, false, fmt.Errorf("unsupported type %s", c.Type)
	}
	return list.Element.Columns, true, nil
}

func checkColumns(path string, cols []column, record reflect.Type) error {
	fields := taggedFields(record)
	declared := lo.Map(cols, func(c column, _ int) string { return c.Name })
	missing, extra := lo.Difference(declared, lo.Keys(fields))
	if len(missing) > 0 || len(extra) > 0 {
		slices.Sort(missing)
		slices.Sort(extra)
		return fmt.Errorf("parquet schema mismatch in %s: missing=%v extra=%v", path, missing, extra)
	}

	for _, c := range cols {
		name := path + "." + c.Name
		nested, isList, err := c.elements()
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		field := fields[c.Name]
		repeated := field.Kind() == reflect.Slice && field.Elem().Kind() == reflect.Struct
		switch {
		case isList && !repeated:
			return fmt.Errorf("column %s: schema lists structs, field is %s", name, field)
		case !isList && repeated:
			return fmt.Errorf("column %s: field %s has no element schema", name, field)
		case isList:
			if err := checkColumns(name, nested, field.Elem()); err != nil {
				return err
			}
		}
	}
	return nil
}

// taggedFields maps parquet column names to the Go types carrying them.
func taggedFields(record reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type, record.NumField())
	for i := range record.NumField() {
		f := record.Field(i)
		if name := tagName(f.Tag.Get("parquet")); name != "" {
			fields[name] = f.Type
		}
	}
	return fields
}

func tagName(tag string) string {
	for part := range strings.SplitSeq(tag, ",") {
		if key, value, ok := strings.Cut(strings.TrimSpace(part), "="); ok && key == "name" {
			return value
		}
	}
	return ""
}
