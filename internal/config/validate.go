package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/seenimoa/yieldcharts/internal/maturity"
	"github.com/seenimoa/yieldcharts/internal/series"
)

// NewValidator returns a validator with the domain tags registered:
// "seriesid" (FRED identifier such as DGS10), "maturity" (label such as
// 10-year) and "interval" (D, W or ME). Field names in errors come from json
// tags.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("seriesid", func(fl validator.FieldLevel) bool {
		_, err := maturity.Parse(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("maturity", func(fl validator.FieldLevel) bool {
		_, err := maturity.ParseLabel(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("interval", func(fl validator.FieldLevel) bool {
		_, err := series.ParseInterval(fl.Field().String())
		return err == nil
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks cfg against its struct tags.
func (c *Config) Validate() error {
	return ValidateStruct(NewValidator(), c)
}

// ValidateStruct runs v over s and folds the field errors into one readable
// error.
func ValidateStruct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, FormatFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// FormatFieldError renders one validation failure.
func FormatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	param := fe.Param()

	switch fe.Tag() {
	case "required", "required_if", "required_unless":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s form", field, param)
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, param)
	case "seriesid":
		return fmt.Sprintf("%s must be a FRED series id such as FF, DGS3MO or DGS10 (got %q)", field, fe.Value())
	case "maturity":
		return fmt.Sprintf("%s must be a duration such as 3-month or 10-year (got %q)", field, fe.Value())
	case "interval":
		return fmt.Sprintf("%s must be D, W or ME (got %q)", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
