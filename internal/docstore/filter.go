package docstore

import (
	"reflect"

	"github.com/localnerve/itsm-api/internal/types"
)

// Filter selects documents by their fields.
type Filter interface {
	Match(fields map[string]interface{}) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(fields map[string]interface{}) bool

// Match calls f.
func (f FilterFunc) Match(fields map[string]interface{}) bool {
	return f(fields)
}

// Path addresses a possibly nested field, one key per level.
type Path []string

// Where starts a filter on the field at path.
func Where(path ...string) Path {
	return Path(path)
}

// Lookup resolves the path in fields.
func (p Path) Lookup(fields map[string]interface{}) (interface{}, bool) {
	if len(p) == 0 {
		return nil, false
	}
	var cur interface{} = fields
	for _, key := range p {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Equals matches documents whose field equals value.
func (p Path) Equals(value interface{}) Filter {
	return p.OneOf(value)
}

// OneOf matches documents whose field equals any of values.
func (p Path) OneOf(values ...interface{}) Filter {
	return FilterFunc(func(fields map[string]interface{}) bool {
		stored, ok := p.Lookup(fields)
		if !ok {
			return false
		}
		for _, v := range values {
			if equal(stored, v) {
				return true
			}
		}
		return false
	})
}

// Any matches documents whose field is a list containing any of values.
func (p Path) Any(values ...interface{}) Filter {
	return FilterFunc(func(fields map[string]interface{}) bool {
		stored, ok := p.Lookup(fields)
		if !ok {
			return false
		}
		list, ok := stored.([]interface{})
		if !ok {
			return false
		}
		for _, item := range list {
			for _, v := range values {
				if equal(item, v) {
					return true
				}
			}
		}
		return false
	})
}

// And matches documents matched by every non-nil filter.
func And(filters ...Filter) Filter {
	return FilterFunc(func(fields map[string]interface{}) bool {
		for _, f := range filters {
			if f != nil && !f.Match(fields) {
				return false
			}
		}
		return true
	})
}

// equal compares decoded JSON values. Numbers of different Go integer types
// compare by value; a number never equals a string.
func equal(a, b interface{}) bool {
	return reflect.DeepEqual(types.Normalize(a), types.Normalize(b))
}
