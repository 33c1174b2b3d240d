// error.go
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

package types

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types reported in the error envelope.
const (
	TypeValidation         = "validation"
	TypeNotFound           = "not_found"
	TypeMethodNotSupported = "method_not_supported"
	TypeStorage            = "storage"
)

// CustomError is an error that knows the HTTP status it maps to.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
	cause   error
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Unwrap returns the underlying cause, if any.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// Validationf reports malformed or semantically invalid input.
func Validationf(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: http.StatusBadRequest, Message: fmt.Sprintf(format, args...), Type: TypeValidation}
}

// NotFoundf reports a missing entity.
func NotFoundf(format string, args ...interface{}) *CustomError {
	return &CustomError{Code: http.StatusNotFound, Message: fmt.Sprintf(format, args...), Type: TypeNotFound}
}

// MethodNotSupported reports an operation the resource does not implement.
func MethodNotSupported() *CustomError {
	return &CustomError{Code: http.StatusMethodNotAllowed, Message: "Method not allowed", Type: TypeMethodNotSupported}
}

// StorageFailure reports a failed blob store read or write.
func StorageFailure(message string, cause error) *CustomError {
	return &CustomError{Code: http.StatusInternalServerError, Message: message, Type: TypeStorage, cause: cause}
}

// AsCustomError extracts a *CustomError from the error chain.
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func hasType(err error, errType string) bool {
	ce, ok := AsCustomError(err)
	return ok && ce.Type == errType
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return hasType(err, TypeValidation)
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return hasType(err, TypeNotFound)
}

// IsStorage reports whether err is a storage failure.
func IsStorage(err error) bool {
	return hasType(err, TypeStorage)
}
