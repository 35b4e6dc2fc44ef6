package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Product family validation
	validate.RegisterValidation("family", func(fl validator.FieldLevel) bool {
		family := fl.Field().String()
		validFamilies := []string{"vip", "coin", "credit", "goods"}
		for _, f := range validFamilies {
			if family == f {
				return true
			}
		}
		return false
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "min":
			errors[field] = "Value is below the allowed minimum"
		case "max":
			errors[field] = "Value exceeds the allowed maximum"
		case "family":
			errors[field] = "Must be one of: vip, coin, credit, goods"
		case "uuid":
			errors[field] = "Must be a valid UUID"
		default:
			errors[field] = "Invalid value"
		}
	}
	return errors
}
