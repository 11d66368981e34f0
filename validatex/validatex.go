// Package validatex checks struct fields against `validatex` tag rules:
//
//	Images []string `json:"images" validatex:"required,max=500"`
package validatex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Abraxas-365/visionocr/errx"
)

var (
	ErrRegistry = errx.NewRegistry("VALIDATION")

	ErrInvalid     = ErrRegistry.Register("INVALID", errx.TypeValidation, 400, "Validation failed")
	ErrUnknownRule = ErrRegistry.Register("UNKNOWN_RULE", errx.TypeInternal, 500, "Unknown validation rule")
)

// Validatable is implemented by types with checks tags cannot express. It
// runs after the tag rules pass.
type Validatable interface {
	Validate() error
}

// Validate checks obj, a struct or pointer to one. All failing fields are
// reported in the error details, keyed by their JSON names.
func Validate(obj any) error {
	fields, err := structFields(obj)
	if err != nil {
		return ErrRegistry.NewWithCause(ErrInvalid, err)
	}

	failures := map[string]string{}
	for _, f := range fields {
		for _, rule := range f.Rules {
			fn, ok := getValidationFunc(rule.Name)
			if !ok {
				return ErrRegistry.New(ErrUnknownRule).WithDetail("rule", rule.Name).WithDetail("field", f.Name)
			}
			// Empty optional fields only answer to "required"
			if rule.Name != "required" && isZero(f.Value) {
				continue
			}
			value, _ := dereferenceValue(f.Value)
			if !fn(value, rule.Param) {
				failures[f.Name] = describe(rule)
				break
			}
		}
	}

	if len(failures) > 0 {
		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		e := ErrRegistry.NewWithMessage(ErrInvalid, fmt.Sprintf("invalid %s", strings.Join(names, ", ")))
		for name, reason := range failures {
			e.WithDetail(name, reason)
		}
		return e
	}

	if v, ok := obj.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

func describe(r ruleInfo) string {
	switch r.Name {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + r.Param
	case "max":
		return "must be at most " + r.Param
	case "oneof":
		return "must be one of " + r.Param
	}
	if r.Param != "" {
		return fmt.Sprintf("fails %s=%s", r.Name, r.Param)
	}
	return "fails " + r.Name
}
