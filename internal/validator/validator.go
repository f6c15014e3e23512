package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	masterdata "site-registry/internal/masterdata/domain"
)

// Validator checks request payloads against their struct tags.
type Validator struct {
	validate *validator.Validate
}

// New builds a validator with the registry's custom tags.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)

	// Custom validators
	_ = v.RegisterValidation("iso_date", validateISODate)
	_ = v.RegisterValidation("country", validateCountry)
	_ = v.RegisterValidation("group_type", validateGroupType)

	return &Validator{validate: v}
}

// Validate returns nil or an error listing every failed field.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "iso_date":
		return fe.Field() + " must be a date in YYYY-MM-DD format"
	case "country":
		return fe.Field() + " must be one of FR, IT"
	case "group_type":
		return fe.Field() + " must be one of GROUP1, GROUP2, GROUP3"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", fe.Field(), comparison(fe.Tag()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(masterdata.DateLayout, fl.Field().String())
	return err == nil
}

func validateCountry(fl validator.FieldLevel) bool {
	_, ok := masterdata.ParseCountry(fl.Field().String())
	return ok
}

func validateGroupType(fl validator.FieldLevel) bool {
	_, ok := masterdata.ParseGroupType(fl.Field().String())
	return ok
}
