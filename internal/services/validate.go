package services

import (
	"github.com/go-playground/validator/v10"
	"github.com/pliu/chatterbox/internal/apperr"
)

var validate = validator.New()

// requireFields runs the struct's validate tags and reports any failure as a
// validation error carrying msg.
func requireFields(req any, msg string) error {
	if err := validate.Struct(req); err != nil {
		return apperr.Validation(msg)
	}
	return nil
}
