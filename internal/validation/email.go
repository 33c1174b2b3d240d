package validation

import (
	"github.com/go-playground/validator/v10"
	"github.com/localnerve/itsm-api/internal/types"
)

var validate = validator.New()

// Email checks that value is a well-formed email address.
func Email(value interface{}) (string, error) {
	email, ok := value.(string)
	if !ok {
		return "", types.Validationf("expected string type for email")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return "", types.Validationf("'%s' is not a valid email address", email)
	}
	return email, nil
}
