// common.go
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

package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/itsm-api/internal/docstore"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/middleware"
	"github.com/localnerve/itsm-api/internal/resources"
	"github.com/localnerve/itsm-api/internal/search"
	"github.com/localnerve/itsm-api/internal/types"
)

// queryValues collects the query arguments, keeping repeated keys.
func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	args := c.Context().QueryArgs()
	for key, value := range args.All() {
		values.Add(string(key), string(value))
	}
	return values
}

// newRequest builds the resource request from the route parameters and the
// negotiated representation. Only reads carry a search filter.
func newRequest(c *fiber.Ctx, r resources.Resource) (resources.Request, error) {
	params := make(map[string]string)
	for _, name := range r.Template().Params() {
		value, err := url.PathUnescape(c.Params(name))
		if err != nil {
			return resources.Request{}, types.Validationf("invalid path parameter '%s'", name)
		}
		params[name] = value
	}
	return resources.Request{
		Params: params,
		Linker: hal.Linker{Clickable: middleware.WantsHTML(c)},
	}, nil
}

// searchFilter translates the query string against the resource's search schema.
func searchFilter(c *fiber.Ctx, r resources.Resource) (docstore.Filter, error) {
	return search.Build(r.SearchSchema(), queryValues(c))
}

// requestBody decodes the JSON object in the request body.
func requestBody(c *fiber.Ctx) (map[string]interface{}, error) {
	body := c.Body()
	if len(body) == 0 {
		return nil, types.Validationf("expected request data")
	}
	data, err := types.DecodeObject(body)
	if err != nil {
		return nil, types.Validationf("malformed request data: %v", err)
	}
	return data, nil
}
