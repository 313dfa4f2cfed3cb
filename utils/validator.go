package utils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationService struct {
	validator *validator.Validate
}

type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func NewValidationService() *ValidationService {
	v := validator.New()

	v.RegisterValidation("emergency_category", validateEmergencyCategory)
	v.RegisterValidation("responder_status", validateResponderStatus)
	v.RegisterValidation("notification_priority", validateNotificationPriority)

	return &ValidationService{validator: v}
}

func (vs *ValidationService) ValidateStruct(s interface{}) []ValidationError {
	var validationErrors []ValidationError

	err := vs.validator.Struct(s)
	if err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fieldErr.Field(),
				Tag:     fieldErr.Tag(),
				Value:   fmt.Sprintf("%v", fieldErr.Value()),
				Message: vs.getErrorMessage(fieldErr),
			})
		}
	}

	return validationErrors
}

// ValidateRequest is the service-layer entry point: it folds field
// errors into a single validation ServiceError, or returns nil.
func (vs *ValidationService) ValidateRequest(s interface{}) error {
	validationErrors := vs.ValidateStruct(s)
	if len(validationErrors) == 0 {
		return nil
	}
	messages := make([]string, len(validationErrors))
	for i, ve := range validationErrors {
		messages[i] = ve.Message
	}
	return NewValidationErrorWithDetails("Request validation failed", strings.Join(messages, "; "))
}

func (vs *ValidationService) getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "emergency_category":
		return "Invalid emergency category"
	case "responder_status":
		return "Invalid responder status"
	case "notification_priority":
		return "Invalid notification priority"
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func validateEmergencyCategory(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "fire", "medical", "security", "natural_disaster", "other":
		return true
	}
	return false
}

func validateResponderStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "notified", "en_route", "on_scene", "completed":
		return true
	}
	return false
}

func validateNotificationPriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "low", "medium", "high", "urgent":
		return true
	}
	return false
}
