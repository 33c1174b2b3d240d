// resource.go
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
	"bytes"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/itsm-api/internal/hal"
	"github.com/localnerve/itsm-api/internal/middleware"
	"github.com/localnerve/itsm-api/internal/render"
	"github.com/localnerve/itsm-api/internal/resources"
	"github.com/localnerve/itsm-api/internal/types"
)

// ResourceHandler serves resources over HTTP.
type ResourceHandler struct {
	Renderer *render.Renderer
}

// Register routes every resource. The capabilities of a resource are checked
// once here; methods a resource does not support answer 405.
func (h *ResourceHandler) Register(router fiber.Router, all []resources.Resource) {
	for _, r := range all {
		route := r.Template().Route()
		if reader, ok := r.(resources.Reader); ok {
			router.Get(route, h.get(reader))
		}
		if creator, ok := r.(resources.Creator); ok {
			router.Post(route, h.create(creator))
		}
		if replacer, ok := r.(resources.Replacer); ok {
			router.Put(route, h.replace(replacer))
		}
		router.All(route, methodNotAllowed)
	}
}

func methodNotAllowed(c *fiber.Ctx) error {
	return types.MethodNotSupported()
}

// get handles GET on a resource
// @Summary Read a resource
// @Description Returns the representation of any resource, with _links and _embedded sections.
// @Tags Resources
// @Produce json,html
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /{resource} [get]
func (h *ResourceHandler) get(r resources.Reader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := newRequest(c, r)
		if err != nil {
			return err
		}
		if req.Filter, err = searchFilter(c, r); err != nil {
			return err
		}
		res, err := r.Get(c.UserContext(), req)
		if err != nil {
			return err
		}
		return h.send(c, r, fiber.StatusOK, res)
	}
}

// create handles POST on a collection
// @Summary Create an entity
// @Description Validates the request body and stores a new entity. Answers with its location and representation.
// @Tags Resources
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /{collection} [post]
func (h *ResourceHandler) create(r resources.Creator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := newRequest(c, r)
		if err != nil {
			return err
		}
		data, err := requestBody(c)
		if err != nil {
			return err
		}
		location, res, err := r.Create(c.UserContext(), req, data)
		if err != nil {
			return err
		}
		c.Location(location)
		return h.send(c, r, fiber.StatusCreated, res)
	}
}

// replace handles PUT on a single entity
// @Summary Replace an entity
// @Description Validates the request body and replaces the stored entity. Stored fields missing from the body are removed.
// @Tags Resources
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Router /{resource} [put]
func (h *ResourceHandler) replace(r resources.Replacer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := newRequest(c, r)
		if err != nil {
			return err
		}
		data, err := requestBody(c)
		if err != nil {
			return err
		}
		location, err := r.Replace(c.UserContext(), req, data)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentLocation, location)
		return h.send(c, r, fiber.StatusOK, hal.Object{"msg": "Ok"})
	}
}

// send writes res in the negotiated representation.
func (h *ResourceHandler) send(c *fiber.Ctx, r resources.Resource, status int, res hal.Object) error {
	if middleware.WantsHTML(c) {
		var buf bytes.Buffer
		if err := h.Renderer.HTML(&buf, r.Title(), r.Description(), res); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, render.MIMEHTML)
		return c.Status(status).Send(buf.Bytes())
	}
	body, err := h.Renderer.JSON(res)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Status(status).Send(body)
}
