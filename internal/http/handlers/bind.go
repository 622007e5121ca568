package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/eduloan/internal/domain/application"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule,omitempty"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// BindJSON decodes and validates the body. Malformed JSON is a 400; a well
// formed body that breaks a field rule is a 422. Field names are the JSON
// names, which application.RegisterValidations sets up on the gin engine.
func BindJSON(ctx *gin.Context, out interface{}) bool {
	err := ctx.ShouldBindJSON(out)
	if err == nil {
		return true
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]FieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, FieldError{
				Field:   fe.Field(),
				Rule:    fe.Tag(),
				Param:   fe.Param(),
				Message: validationMessage(fe.Field(), fe.Tag(), fe.Param()),
			})
		}
		RespondUnprocessable(ctx, "Some fields are invalid", gin.H{"fields": fields})
		return false
	}

	RespondBadRequest(ctx, "Invalid request body", decodeErrorDetails(err))
	return false
}

// BindOptionalJSON is BindJSON for bodies that may be left out entirely; an
// empty body leaves out untouched and defers the rules to the service.
func BindOptionalJSON(ctx *gin.Context, out interface{}) bool {
	if ctx.Request.Body == nil || ctx.Request.ContentLength == 0 {
		return true
	}
	return BindJSON(ctx, out)
}

func decodeErrorDetails(err error) gin.H {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return gin.H{"json": "invalid_json_syntax"}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		// Field is already the JSON path
		field := strings.TrimSpace(typeErr.Field)
		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{{
				Field:   field,
				Rule:    "type",
				Message: fmt.Sprintf("must be of type %s", typeErr.Type.String()),
			}},
		}
	}

	return gin.H{"reason": err.Error()}
}

func validationMessage(field, rule, param string) string {
	if msg, ok := application.RuleMessage(rule); ok {
		return msg
	}

	if field == "cibilScore" && (rule == "min" || rule == "max") {
		return "CIBIL score must be between 300 and 900"
	}

	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
