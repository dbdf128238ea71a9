package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/username/tillpoint/backend/src/models"
)

type ErrorResponse struct {
	FailedField string
	Tag         string
	Value       string
}

var validate = validator.New()

func init() {
	// Product categories are a closed set; "category" on a string field
	// rejects anything the catalog does not know.
	validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.ValidCategory(fl.Field().String())
	})
	// Payment methods are likewise closed.
	validate.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return models.ValidPaymentMethod(fl.Field().String())
	})
}

// ValidateStruct runs tag validation over a request payload.
func ValidateStruct(data interface{}) []*ErrorResponse {
	var errors []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		for _, err := range err.(validator.ValidationErrors) {
			var element ErrorResponse
			element.FailedField = err.StructNamespace()
			element.Tag = err.Tag()
			element.Value = err.Param()
			errors = append(errors, &element)
		}
	}
	return errors
}

// FormatErrors flattens validation failures into one message suitable for a
// JSON error response.
func FormatErrors(errs []*ErrorResponse) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Value != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", e.FailedField, e.Tag, e.Value))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", e.FailedField, e.Tag))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
