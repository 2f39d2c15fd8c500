package validator

import (
	"sync"

	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/types"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// NewValidator builds the shared validator with the permit specific tags registered
func NewValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("contract_type", func(fl validator.FieldLevel) bool {
			return types.ContractType(fl.Field().String()).Validate() == nil
		})
		_ = validate.RegisterValidation("end_type", func(fl validator.FieldLevel) bool {
			return types.EndType(fl.Field().String()).Validate() == nil
		})
		_ = validate.RegisterValidation("provider_event", func(fl validator.FieldLevel) bool {
			return types.ProviderEventType(fl.Field().String()).Validate() == nil
		})
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

func ValidateRequest(req interface{}) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
