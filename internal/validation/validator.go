// Package validation checks the shape of create and update payloads.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"example.com/activities/internal/domain"
)

// PayloadValidator validates request shapes with struct tags. It only rejects malformed
// input; lifecycle rules are applied afterwards by the lifecycle service.
type PayloadValidator struct {
	v *validator.Validate
}

// New builds a PayloadValidator with the activity enum rules registered.
func New() *PayloadValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := registerRules(v, map[string]validator.Func{
		"activitytype": func(fl validator.FieldLevel) bool {
			return domain.ActivityType(fl.Field().String()).Valid()
		},
		"stationtype": func(fl validator.FieldLevel) bool {
			return slices.Contains(domain.StationTypes, domain.StationType(fl.Field().String()))
		},
		"waitreason": func(fl validator.FieldLevel) bool {
			return slices.Contains(domain.WaitReasons, domain.WaitReason(fl.Field().String()))
		},
	}); err != nil {
		panic(err)
	}
	v.RegisterStructValidation(testerEmailRule, domain.CreateRequest{})

	return &PayloadValidator{v: v}
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q rule: %w", tag, err)
		}
	}
	return nil
}

// testerEmailRule requires testerEmail for visits and forbids it for every other type.
func testerEmailRule(sl validator.StructLevel) {
	req := sl.Current().Interface().(domain.CreateRequest)
	switch {
	case req.ActivityType == domain.ActivityTypeVisit && req.TesterEmail == "":
		sl.ReportError(req.TesterEmail, "testerEmail", "TesterEmail", "required", "")
	case req.ActivityType != domain.ActivityTypeVisit && req.TesterEmail != "":
		sl.ReportError(req.TesterEmail, "testerEmail", "TesterEmail", "forbidden", "")
	}
}

// ValidateCreate checks a create payload.
func (p *PayloadValidator) ValidateCreate(req domain.CreateRequest) error {
	return p.check(req)
}

// ValidateUpdate checks one element of an update payload.
func (p *PayloadValidator) ValidateUpdate(req domain.UpdateRequest) error {
	return p.check(req)
}

func (p *PayloadValidator) check(s any) error {
	err := p.v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return errors.New(describe(fieldErrs[0]))
	}
	return err
}

// describe renders the first failure the way callers of the service expect,
// e.g. `"activityType" is required`.
func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "forbidden":
		return fmt.Sprintf("%q is not allowed", field)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "min":
		return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "activitytype", "stationtype", "waitreason":
		return fmt.Sprintf("%q must be one of %s", field, allowed(fe.Tag()))
	default:
		return fmt.Sprintf("%q failed on the %q rule", field, fe.Tag())
	}
}

func allowed(tag string) string {
	var values []string
	switch tag {
	case "activitytype":
		for _, v := range domain.ActivityTypes {
			values = append(values, string(v))
		}
	case "stationtype":
		for _, v := range domain.StationTypes {
			values = append(values, string(v))
		}
	case "waitreason":
		for _, v := range domain.WaitReasons {
			values = append(values, string(v))
		}
	}
	return "[" + strings.Join(values, ", ") + "]"
}
