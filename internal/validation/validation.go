// Package validation turns input constraint violations into a field keyed
// set of messages.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Errors maps a field name to its messages. It is returned as an error by
// services when input is rejected; no state is changed in that case.
type Errors map[string][]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+strings.Join(e[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg against field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Has reports whether field has at least one message.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Err returns nil when no messages were recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Merge copies messages of other into e.
func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		e[field] = append(e[field], msgs...)
	}
}

// As extracts Errors from err.
func As(err error) (Errors, bool) {
	var verr Errors
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

var (
	once     sync.Once
	validate *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates s using its `validate` tags and returns Errors keyed by
// the json field names.
func Struct(s any) Errors {
	errs := Errors{}
	err := engine().Struct(s)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("base", err.Error())
		return errs
	}
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "is invalid"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "eqfield":
		return "doesn't match " + fe.Param()
	}
	return "is invalid"
}
