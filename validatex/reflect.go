package validatex

import (
	"errors"
	"reflect"
	"strings"
)

var ErrNotStruct = errors.New("value must be a struct")

// structFields returns the tagged fields of a struct, named by their JSON
// names. Nested structs are flattened as parent.child.
func structFields(obj any) ([]fieldInfo, error) {
	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil, ErrNotStruct
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, ErrNotStruct
	}

	typ := val.Type()
	var fields []fieldInfo
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name := jsonName(field)
		fieldValue := val.Field(i)

		if tag := field.Tag.Get("validatex"); tag != "" && tag != "-" {
			fields = append(fields, fieldInfo{
				Name:  name,
				Value: fieldValue.Interface(),
				Rules: parseTag(tag),
			})
		}

		if fieldValue.Kind() == reflect.Ptr && !fieldValue.IsNil() {
			fieldValue = fieldValue.Elem()
		}
		if fieldValue.Kind() == reflect.Struct && fieldValue.Type().PkgPath() != "time" {
			nested, err := structFields(fieldValue.Interface())
			if err != nil {
				return nil, err
			}
			for _, n := range nested {
				n.Name = name + "." + n.Name
				fields = append(fields, n)
			}
		}
	}
	return fields, nil
}

func jsonName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" && tag != "-" {
		return tag
	}
	return f.Name
}

type fieldInfo struct {
	Name  string
	Value any
	Rules []ruleInfo
}

type ruleInfo struct {
	Name  string
	Param string
}

// parseTag parses "required,min=1,oneof=a b" into rules
func parseTag(tag string) []ruleInfo {
	parts := strings.Split(tag, ",")
	rules := make([]ruleInfo, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, param, _ := strings.Cut(part, "=")
		rules = append(rules, ruleInfo{Name: name, Param: param})
	}
	return rules
}

// isZero reports whether value is nil, a zero scalar or an empty collection
func isZero(value any) bool {
	if value == nil {
		return true
	}
	val := reflect.ValueOf(value)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		return val.IsNil()
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return val.Len() == 0
	default:
		return val.IsZero()
	}
}

// dereferenceValue unwraps one pointer level, reporting nil pointers
func dereferenceValue(value any) (any, bool) {
	if value == nil {
		return nil, true
	}
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr {
		return value, false
	}
	if val.IsNil() {
		return nil, true
	}
	return val.Elem().Interface(), false
}
