package middleware

import (
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/taskhub/auth-service/internal/constants"
)

// RegisterValidators wires custom rules into gin's binding validator. Must
// run once before the router starts handling requests.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("password", passwordRule)
}

func passwordRule(fl validator.FieldLevel) bool {
	return checkPasswordPolicy(fl.Field().String())
}

// checkPasswordPolicy enforces length bounds plus at least one letter and
// one digit. Field-level detail comes back through gin's binding error.
func checkPasswordPolicy(password string) bool {
	if len(password) < constants.MinPasswordLength || len(password) > constants.MaxPasswordLength {
		return false
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	return hasLetter && hasDigit
}
