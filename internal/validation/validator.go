// Package validation checks operation inputs with go-playground/validator
// struct tags and reports failures as InvalidInput errors.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/okian/futsalrank/internal/domain/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	switch e.Tag {
	case "required":
		return e.Field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", e.Field, e.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s", e.Field, e.Param)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", e.Field, e.Param)
	case "unique":
		return e.Field + " must not contain duplicates"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field, e.Param)
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", e.Field, e.Param)
	case "excludes":
		return fmt.Sprintf("%s must not contain %q", e.Field, e.Param)
	case "datetime":
		return fmt.Sprintf("%s must use layout %s", e.Field, e.Param)
	default:
		return fmt.Sprintf("%s failed %s", e.Field, e.Tag)
	}
}

// Errors is the full set of failed rules for one input.
type Errors []FieldError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Get returns the shared validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates s and returns an InvalidInput error for op on failure.
func Struct(op string, s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.WrapKind(op, model.ErrInvalidInput, err)
	}
	out := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return model.WrapKind(op, model.ErrInvalidInput, out)
}
