// validation.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package validation implements the field and dictionary checks shared by every
// create and replace path.
package validation

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/localnerve/itsm-api/internal/types"
)

// Meta fields are accepted in request bodies and discarded.
var metaFields = map[string]struct{}{
	"id":        {},
	"_created":  {},
	"_updated":  {},
	"_links":    {},
	"_embedded": {},
}

// Validator checks a single field value and may return a transformed value.
// Validation failures are returned as types.CustomError of type validation.
type Validator func(value interface{}) (interface{}, error)

// Field names a request body key and its validator.
type Field struct {
	Name     string
	Validate Validator
}

// IsMeta reports whether key is one of the always-allowed meta fields.
func IsMeta(key string) bool {
	_, ok := metaFields[key]
	return ok
}

// StringLength returns a validator requiring a string of min to max characters.
func StringLength(min, max int) Validator {
	return func(value interface{}) (interface{}, error) {
		text, ok := value.(string)
		if !ok {
			return nil, types.Validationf("expected string type")
		}
		if n := utf8.RuneCountInString(text); n < min || n > max {
			return nil, types.Validationf("length should be between %d and %d characters", min, max)
		}
		return text, nil
	}
}

// Map requires a JSON object.
func Map(value interface{}) (interface{}, error) {
	m, ok := value.(map[string]interface{})
	if !ok {
		return nil, types.Validationf("expected a dictionary")
	}
	return m, nil
}

// Any accepts every value unchanged.
func Any(value interface{}) (interface{}, error) {
	return value, nil
}

// Dictionary checks data against the mandatory and optional field lists.
//
// Missing mandatory keys are reported in declaration order, unknown keys in
// sorted order. Each present field is validated in declaration order and a
// failure is prefixed with the key name. Meta fields are dropped from the
// result. _created is set to now for new entities and carried forward from
// existing otherwise; _updated is always now.
func Dictionary(data map[string]interface{}, mandatory, optional []Field, existing map[string]interface{}, now string) (map[string]interface{}, error) {
	var missing []string
	for _, f := range mandatory {
		if _, ok := data[f.Name]; !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, types.Validationf("missing mandatory key(s): %s", strings.Join(missing, ", "))
	}

	known := make(map[string]struct{}, len(mandatory)+len(optional))
	for _, f := range mandatory {
		known[f.Name] = struct{}{}
	}
	for _, f := range optional {
		known[f.Name] = struct{}{}
	}
	var invalid []string
	for k := range data {
		if _, ok := known[k]; !ok && !IsMeta(k) {
			invalid = append(invalid, k)
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, types.Validationf("invalid key(s) in request body: %s", strings.Join(invalid, ", "))
	}

	res := make(map[string]interface{}, len(data)+2)
	fields := append(append([]Field{}, mandatory...), optional...)
	for _, f := range fields {
		value, ok := data[f.Name]
		if !ok {
			continue
		}
		validate := f.Validate
		if validate == nil {
			validate = Any
		}
		v, err := validate(value)
		if err != nil {
			if ce, ok := types.AsCustomError(err); ok && ce.Type == types.TypeValidation {
				return nil, types.Validationf("key '%s': %s", f.Name, ce.Message)
			}
			return nil, err
		}
		res[f.Name] = v
	}

	if existing == nil {
		res["_created"] = now
	} else if created, ok := existing["_created"]; ok {
		res["_created"] = created
	}
	res["_updated"] = now
	return res, nil
}
