package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/yigit/bursar/internal/pkg/apperrors"
)

func init() {
	// Report wire names (json, form, uri) instead of Go field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	}
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	case "max":
		return "must be at most " + e.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(e.Param(), " ", ", ")
	case "uuid":
		return "must be a valid UUID"
	default:
		return "validation failed: " + e.Tag()
	}
}

// bindingError converts a gin binding failure into an apperrors.ValidationError carrying every field
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apperrors.FieldError, 0, len(verrs))
		for _, e := range verrs {
			fields = append(fields, apperrors.FieldError{Field: e.Field(), Message: formatValidationError(e)})
		}
		return apperrors.NewValidationError(fields)
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return apperrors.NewValidationError([]apperrors.FieldError{{Field: "body", Message: "request body is required"}})
	case errors.As(err, &syntaxErr):
		return apperrors.NewValidationError([]apperrors.FieldError{{Field: "body", Message: "malformed JSON"}})
	case errors.As(err, &typeErr):
		return apperrors.NewValidationError([]apperrors.FieldError{{Field: typeErr.Field, Message: "must be a " + typeErr.Type.String()}})
	default:
		return apperrors.NewValidationError([]apperrors.FieldError{{Field: "body", Message: err.Error()}})
	}
}

// BindJSON decodes the request body into obj and runs its binding tags
func BindJSON(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

// BindQuery binds the query string into obj and runs its binding tags
func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindingError(err)
	}
	return nil
}

// BindURI binds path parameters into obj and runs its binding tags
func BindURI(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		return bindingError(err)
	}
	return nil
}
