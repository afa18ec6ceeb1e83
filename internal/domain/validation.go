package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func contentValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("targetpage", func(fl validator.FieldLevel) bool {
			return IsTargetPage(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValidateContent trims and checks ad content. All four text fields are
// required and target pages must be a non-empty subset of TargetPages.
func ValidateContent(c AdContent) (AdContent, error) {
	c = c.Normalized()
	return c, ValidateStruct(c)
}

// ValidateStruct runs the validate tags of v and reports failures as a
// *ValidationError keyed by json field name
func ValidateStruct(v any) error {
	err := contentValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fieldName(fe), Message: messageFor(fe)})
	}
	return out
}

// ValidateTargetPages checks a page set chosen at publish time
func ValidateTargetPages(pages []string) ([]string, error) {
	if len(pages) == 0 {
		return nil, NewValidationError("targetPages", "select at least one page")
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if !IsTargetPage(p) {
			return nil, NewValidationError("targetPages", "unknown page "+p)
		}
		if !containsString(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func fieldName(fe validator.FieldError) string {
	// Namespace is Type.field or Type.targetPages[0] for dive errors
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.Index(ns, "["); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "select at least one page"
		}
		return "must be at least " + fe.Param() + " characters"
	case "email":
		return "must be a valid email address"
	case "unique":
		return "contains duplicates"
	case "targetpage":
		return "unknown page " + fe.Value().(string)
	}
	return "is invalid"
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
