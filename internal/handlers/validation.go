package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/vitotech/website-api/pkg/errors"
	"github.com/vitotech/website-api/pkg/response"
	appValidator "github.com/vitotech/website-api/pkg/validator"
)

// bindAndValidate binds a JSON payload into dest and runs struct
// validation rules. On failure an error response has already been
// written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}
	return validate(c, dest)
}

// bindFormAndValidate is the multipart/form counterpart of bindAndValidate.
func bindFormAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBind(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid form payload"))
		return false
	}
	return validate(c, dest)
}

func validate[T any](c *gin.Context, dest *T) bool {
	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, validationError(err))
		return false
	}
	return true
}

// validationError converts validator failures into a field-keyed 400 so
// clients can attach messages to individual form inputs.
func validationError(err error) error {
	ve, ok := err.(appValidator.ValidationErrors)
	if !ok || len(ve) == 0 {
		return appErrors.NewBadRequest("invalid request payload")
	}

	fields := make(map[string]string, len(ve))
	for _, failure := range ve {
		key := strings.ToLower(failure.Field)
		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = failureMessage(failure)
	}
	return appErrors.NewValidation(fields)
}

func failureMessage(failure appValidator.ValidationError) string {
	field := strings.ReplaceAll(strings.ToLower(failure.Field), "_", " ")
	switch failure.Tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, failure.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, failure.Param)
	case "oneof":
		return fmt.Sprintf("%s is not a valid choice", field)
	default:
		if failure.Param != "" {
			return fmt.Sprintf("%s failed validation: %s=%s", field, failure.Tag, failure.Param)
		}
		return fmt.Sprintf("%s failed validation: %s", field, failure.Tag)
	}
}
