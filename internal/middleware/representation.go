// representation.go
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

package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// Representation values stored under RepresentationKey.
const (
	RepresentationKey  = "representation"
	RepresentationJSON = "json"
	RepresentationHTML = "html"
)

// Representation negotiates JSON or HTML from the Accept header and stores
// the result in context. JSON wins ties and is the default.
func Representation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		representation := RepresentationJSON
		if c.Accepts(fiber.MIMEApplicationJSON, fiber.MIMETextHTML) == fiber.MIMETextHTML {
			representation = RepresentationHTML
		}
		c.Locals(RepresentationKey, representation)
		c.Vary(fiber.HeaderAccept)
		return c.Next()
	}
}

// WantsHTML reports whether the request negotiated an HTML page.
func WantsHTML(c *fiber.Ctx) bool {
	representation, _ := c.Locals(RepresentationKey).(string)
	return representation == RepresentationHTML
}
