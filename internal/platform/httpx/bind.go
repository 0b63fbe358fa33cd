package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/shared"
)

// FieldErrors collects validator failures keyed by JSON field name.
type FieldErrors struct {
	Fields map[string]string
}

func (e *FieldErrors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// Is makes FieldErrors match shared.ErrValidation.
func (e *FieldErrors) Is(target error) bool {
	return target == shared.ErrValidation
}

// Bind decodes the JSON body into target and runs struct validation.
func Bind(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return shared.NewValidationError("body", "malformed JSON: "+err.Error())
	}
	if v == nil {
		return nil
	}
	if err := v.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = describe(fe)
			}
			return &FieldErrors{Fields: fields}
		}
		return err
	}
	return nil
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "email":
		return "must be an email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// IDParam parses a positive int64 chi URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// QueryInt64 parses an optional int64 query parameter.
func QueryInt64(r *http.Request, name string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, shared.NewValidationError(name, "must be an integer")
	}
	return &v, nil
}

// QueryInt parses a required int query parameter.
func QueryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, shared.NewValidationError(name, "must be an integer")
	}
	return v, nil
}
