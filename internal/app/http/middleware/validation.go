package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bot-access/internal/domain/plans"
)

// RegisterValidators adds the custom binding rules used by request structs:
//
//	plan  the value is one of the purchasable plans
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("plan", func(fl validator.FieldLevel) bool {
		return plans.Plan(fl.Field().String()).Valid()
	})
}
