// Package validation registers the custom binding rules used by request bodies.
package validation

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/eduevent/backend/internal/models"
)

// Register adds the custom rules to v:
//
//	timeofday      HH:MM or HH:MM:SS
//	eventcategory  one of models.Categories
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("timeofday", validateTimeOfDay); err != nil {
		return fmt.Errorf("register timeofday: %w", err)
	}
	if err := v.RegisterValidation("eventcategory", validateCategory); err != nil {
		return fmt.Errorf("register eventcategory: %w", err)
	}
	return nil
}

// RegisterGin adds the custom rules to gin's default binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return Register(v)
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	_, err := models.ParseTimeOfDay(fl.Field().String())
	return err == nil
}

func validateCategory(fl validator.FieldLevel) bool {
	return models.EventCategory(fl.Field().String()).Valid()
}
