package domain

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// specialCharacters are forbidden in attribute names. The registry stores
// names verbatim but its query layer cannot address names containing them.
// A backslash is not in the set; names carrying the `\s` marker only warn.
const specialCharacters = "',.@\"+=-!#$%^&*<>?/|}{~:"

// CheckAttributeNames enforces the attribute naming policy ahead of any
// write. Names containing a character from the special set, or shadowing a
// reserved entity field, reject the write with a ValidationError. Names
// containing the literal two-character marker `\s` only produce a warning,
// as does a non-lowercase name when warnCase is set (the registry UI
// displays attribute names case-insensitively).
func CheckAttributeNames(attrs map[string]any, warnCase bool) ([]string, error) {
	var warnings []string
	for name := range attrs {
		if warnCase && name != strings.ToLower(name) {
			warnings = append(warnings, fmt.Sprintf(
				"attribute names are not case sensitive on the UI; %q might not appear online", name))
		}
		if strings.Contains(name, `\s`) {
			warnings = append(warnings, fmt.Sprintf(
				"attribute names should not contain white space markers; %q might not appear online", name))
		}
		if strings.ContainsAny(name, specialCharacters) {
			return warnings, Validationf("attribute names cannot contain special characters; %q is invalid", name)
		}
		if IsReservedField(name) {
			return warnings, Validationf("an entity cannot have %q as attribute", name)
		}
	}
	return warnings, nil
}

// CleanAttributes sanitizes an attribute payload in place so the registry
// can represent every value. Rules, applied bottom-up:
//
//   - sequences that are not []any (typed slices, arrays) are converted to
//     []any so element replacement is well-defined;
//   - nil and floating-point NaN become the empty-list marker, the wire
//     format's stand-in for "no value";
//   - empty mappings and empty sequences become the empty-list marker too,
//     with an informational warning that the value arrives downstream as
//     "no value" rather than an empty container;
//   - nested mappings are cleaned recursively, list elements element-wise.
//
// The returned warnings are informational, never fatal. Cleaning an already
// clean payload yields the same structure.
func CleanAttributes(attrs map[string]any) []string {
	var warnings []string
	cleanMap(attrs, &warnings)
	return warnings
}

func cleanMap(m map[string]any, warnings *[]string) {
	for k, v := range m {
		v = normalizeSequence(v)
		switch val := v.(type) {
		case map[string]any:
			cleanMap(val, warnings)
		case []any:
			cleanList(val, warnings)
		}
		if isEmptyContainer(v) {
			*warnings = append(*warnings, fmt.Sprintf(
				"%q is an empty structure and will be stored as an empty value", k))
			v = []any{}
		}
		if v == nil || isNaN(v) {
			v = []any{}
		}
		m[k] = v
	}
}

func cleanList(list []any, warnings *[]string) {
	for i, element := range list {
		element = normalizeSequence(element)
		switch val := element.(type) {
		case []any:
			cleanList(val, warnings)
		case map[string]any:
			cleanMap(val, warnings)
		}
		if element == nil || isNaN(element) {
			element = []any{}
		}
		list[i] = element
	}
	for _, element := range list {
		if element == nil {
			panic("sanitized list still contains nil")
		}
	}
}

// normalizeSequence converts typed slices and arrays into []any. Strings
// and byte slices are left alone: strings are scalars on the wire and raw
// byte buffers are rejected by CheckSerializable instead.
func normalizeSequence(v any) any {
	if v == nil {
		return nil
	}
	if _, ok := v.([]any); ok {
		return v
	}
	switch v.(type) {
	case string, []byte:
		return v
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return v
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func isEmptyContainer(v any) bool {
	switch val := v.(type) {
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	default:
		return false
	}
}

// IsEmptyValue reports whether a sanitized attribute value is the empty
// marker (or an empty string). UpdateOne with allow-nulls disabled drops
// such values from the payload so the stored value survives.
func IsEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return isNaN(v)
	}
}

// CheckSerializable rejects attribute values that cannot travel as JSON:
// complex numbers, channels, functions, raw byte buffers, and mappings with
// non-string keys. The walk recurses through nested maps and sequences so a
// bad value fails fast client-side instead of wasting a network round trip.
func CheckSerializable(attrs map[string]any) error {
	for name, v := range attrs {
		if err := checkSerializableValue(name, v); err != nil {
			return err
		}
	}
	return nil
}

func checkSerializableValue(name string, v any) error {
	if v == nil {
		return nil
	}
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil
	case []byte:
		return Validationf("attribute %q holds a raw byte buffer, which has no JSON representation", name)
	case map[string]any:
		for _, nested := range v.(map[string]any) {
			if err := checkSerializableValue(name, nested); err != nil {
				return err
			}
		}
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Complex64, reflect.Complex128, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return Validationf("attribute %q holds a value of type %T, which has no JSON representation", name, v)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Validationf("attribute %q holds a mapping with non-string keys", name)
		}
		for _, key := range rv.MapKeys() {
			if err := checkSerializableValue(name, rv.MapIndex(key).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := checkSerializableValue(name, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return checkSerializableValue(name, rv.Elem().Interface())
	default:
		return nil
	}
}

// LowercaseAttributeNames returns a copy of attrs with every top-level name
// lower-cased, the transformation the registry applies on create. Later
// keys win on collision, matching remote behavior.
func LowercaseAttributeNames(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[strings.ToLower(k)] = v
	}
	return out
}
