package models

import (
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that knows the workflow_action tag.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("workflow_action", func(fl validator.FieldLevel) bool {
		return WorkflowActionType(fl.Field().String()).IsValid()
	})

	return validate
}
