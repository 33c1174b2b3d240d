// Package search translates URL query parameters into document filters.
package search

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/types"
)

// FieldType is the declared type of a searchable field.
type FieldType int

const (
	String FieldType = iota + 1
	Int
	List
	Dict
)

func (f FieldType) String() string {
	switch f {
	case String:
		return "str"
	case Int:
		return "int"
	case List:
		return "list"
	case Dict:
		return "dict"
	}
	return "unknown"
}

// Schema maps searchable keys to their types. Nested maps are declared as
// "<top>.*" with type Dict, which allows any dotted key below <top>.
type Schema map[string]FieldType

// Build returns a filter for params, or nil if params is empty. Values for one
// key are ORed, distinct keys are ANDed.
func Build(schema Schema, params url.Values) (docstore.Filter, error) {
	if len(params) == 0 {
		return nil, nil
	}
	if schema == nil {
		return nil, types.Validationf("this resource does not support queries")
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	filters := make([]docstore.Filter, 0, len(keys))
	for _, key := range keys {
		path, fieldType, err := resolve(schema, key)
		if err != nil {
			return nil, err
		}
		f, err := term(path, fieldType, key, params[key])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	if len(filters) == 1 {
		return filters[0], nil
	}
	return docstore.And(filters...), nil
}

func resolve(schema Schema, key string) (docstore.Path, FieldType, error) {
	if !strings.Contains(key, ".") {
		fieldType, ok := schema[key]
		if !ok {
			return nil, 0, types.Validationf("invalid search key: %s", key)
		}
		return docstore.Where(key), fieldType, nil
	}

	parts := strings.Split(key, ".")
	fieldType, ok := schema[parts[0]+".*"]
	if !ok {
		return nil, 0, types.Validationf("invalid search key: %s", key)
	}
	if fieldType != Dict {
		return nil, 0, types.Validationf("wrong type for hierarchical search parameters: %s", fieldType)
	}
	return docstore.Where(parts...), fieldType, nil
}

func term(path docstore.Path, fieldType FieldType, key string, raw []string) (docstore.Filter, error) {
	values := make([]interface{}, 0, len(raw))
	for _, v := range raw {
		if fieldType == Int {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, types.Validationf("invalid integer value '%s' for search key: %s", v, key)
			}
			values = append(values, n)
			continue
		}
		values = append(values, v)
	}

	if fieldType == List {
		return path.Any(values...), nil
	}
	return path.OneOf(values...), nil
}
