// errors.go
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
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/itsm-api/internal/types"
	"github.com/localnerve/itsm-api/internal/utils"
)

// ErrorHandler maps errors to the error envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	errorType := "unknown"

	var fe *fiber.Error
	if ce, ok := types.AsCustomError(err); ok {
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
		if code == fiber.StatusBadRequest {
			message = "Bad Request - " + message
		}
	} else if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
		errorType = "http"
	}

	if code >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.UserContext(), "request failed",
			"method", c.Method(), "url", c.OriginalURL(), "status", code, "error", err)
	}
	return utils.ErrorResponse(c, message, code, errorType)
}

// NotFound answers requests no route matched.
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}
