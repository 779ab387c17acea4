package domain

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestCleanAttributesReplacesEmptyValues(t *testing.T) {
	attrs := map[string]any{
		"none":      nil,
		"nan":       math.NaN(),
		"empty_map": map[string]any{},
		"empty_seq": []any{},
		"keep":      "value",
		"number":    42,
	}
	warnings := CleanAttributes(attrs)
	for _, key := range []string{"none", "nan", "empty_map", "empty_seq"} {
		got, ok := attrs[key].([]any)
		if !ok || len(got) != 0 {
			t.Fatalf("%s: expected empty list marker, got %#v", key, attrs[key])
		}
	}
	if attrs["keep"] != "value" || attrs["number"] != 42 {
		t.Fatalf("clean values must survive: %#v", attrs)
	}
	// empty_map and empty_seq warn; none and nan are silent.
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d: %v", len(warnings), warnings)
	}
}

func TestCleanAttributesRecursesNestedStructures(t *testing.T) {
	attrs := map[string]any{
		"nested": map[string]any{
			"inner_none": nil,
			"inner_list": []any{nil, math.NaN(), "ok", map[string]any{"deep": nil}},
		},
	}
	CleanAttributes(attrs)
	nested := attrs["nested"].(map[string]any)
	if got := nested["inner_none"].([]any); len(got) != 0 {
		t.Fatalf("nested nil not replaced: %#v", got)
	}
	list := nested["inner_list"].([]any)
	if got := list[0].([]any); len(got) != 0 {
		t.Fatalf("nil list element not replaced: %#v", list[0])
	}
	if got := list[1].([]any); len(got) != 0 {
		t.Fatalf("NaN list element not replaced: %#v", list[1])
	}
	if list[2] != "ok" {
		t.Fatalf("clean list element must survive: %#v", list[2])
	}
	deep := list[3].(map[string]any)
	if got := deep["deep"].([]any); len(got) != 0 {
		t.Fatalf("map element inside list not cleaned: %#v", deep)
	}
}

func TestCleanAttributesConvertsTypedSequences(t *testing.T) {
	attrs := map[string]any{
		"ints":    []int{1, 2, 3},
		"strings": [2]string{"a", "b"},
	}
	CleanAttributes(attrs)
	ints, ok := attrs["ints"].([]any)
	if !ok {
		t.Fatalf("typed slice not converted: %#v", attrs["ints"])
	}
	if !reflect.DeepEqual(ints, []any{1, 2, 3}) {
		t.Fatalf("converted slice changed values: %#v", ints)
	}
	if _, ok := attrs["strings"].([]any); !ok {
		t.Fatalf("array not converted: %#v", attrs["strings"])
	}
}

func TestCleanAttributesIdempotent(t *testing.T) {
	attrs := map[string]any{
		"none":   nil,
		"nested": map[string]any{"list": []any{nil, 1.5}},
		"seq":    []float64{1, 2},
	}
	CleanAttributes(attrs)
	first := CloneAttributes(attrs)
	// The empty-list marker is itself an empty container, so repeated
	// cleaning warns about it again; only the structure must be stable.
	CleanAttributes(attrs)
	if !reflect.DeepEqual(attrs, first) {
		t.Fatalf("second clean changed the structure:\nfirst:  %#v\nsecond: %#v", first, attrs)
	}
}

func TestCheckAttributeNamesSpecialCharacters(t *testing.T) {
	for _, c := range []string{"'", ",", ".", "@", "\"", "+", "=", "-", "!", "#",
		"$", "%", "^", "&", "*", "<", ">", "?", "/", "|", "}", "{", "~", ":"} {
		_, err := CheckAttributeNames(map[string]any{"bad" + c + "name": 1}, false)
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("name with %q: expected ValidationError, got %v", c, err)
		}
	}
	if _, err := CheckAttributeNames(map[string]any{"plain_name": 1, "name2": 2}, false); err != nil {
		t.Fatalf("plain names rejected: %v", err)
	}
}

func TestCheckAttributeNamesReservedAndWarnings(t *testing.T) {
	if _, err := CheckAttributeNames(map[string]any{"origin_id": "x"}, false); err == nil {
		t.Fatal("reserved field accepted as attribute")
	}
	warnings, err := CheckAttributeNames(map[string]any{`with\smarker`: 1}, false)
	if err != nil {
		t.Fatalf("whitespace marker must warn, not fail: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if warnings, err := CheckAttributeNames(map[string]any{`path\to`: 1}, false); err != nil || len(warnings) != 0 {
		t.Fatalf("a lone backslash must pass silently: warnings=%v err=%v", warnings, err)
	}
	warnings, err = CheckAttributeNames(map[string]any{"MixedCase": 1}, true)
	if err != nil || len(warnings) != 1 {
		t.Fatalf("expected case warning, got warnings=%v err=%v", warnings, err)
	}
	if warnings, _ := CheckAttributeNames(map[string]any{"MixedCase": 1}, false); len(warnings) != 0 {
		t.Fatalf("case warning emitted without warnCase: %v", warnings)
	}
}

func TestCheckSerializable(t *testing.T) {
	bad := []map[string]any{
		{"complex": complex(1, 2)},
		{"chan": make(chan int)},
		{"func": func() {}},
		{"bytes": []byte("raw")},
		{"intkeys": map[int]string{1: "a"}},
		{"nested": map[string]any{"deep": complex(0, 1)}},
		{"in_list": []any{1, complex(3, 4)}},
	}
	for _, attrs := range bad {
		if err := CheckSerializable(attrs); err == nil {
			t.Fatalf("expected rejection for %#v", attrs)
		}
	}
	good := map[string]any{
		"str": "x", "int": 1, "float": 1.5, "bool": true, "nil": nil,
		"list": []any{1, "a"}, "map": map[string]any{"k": "v"},
		"typed": map[string]int{"k": 1},
	}
	if err := CheckSerializable(good); err != nil {
		t.Fatalf("serializable payload rejected: %v", err)
	}
}

func TestIsEmptyValue(t *testing.T) {
	for _, v := range []any{nil, "", []any{}, map[string]any{}, math.NaN()} {
		if !IsEmptyValue(v) {
			t.Fatalf("%#v should be empty", v)
		}
	}
	for _, v := range []any{"x", 0, false, []any{1}, map[string]any{"k": 1}} {
		if IsEmptyValue(v) {
			t.Fatalf("%#v should not be empty", v)
		}
	}
}

func TestLowercaseAttributeNames(t *testing.T) {
	out := LowercaseAttributeNames(map[string]any{"CamelCase": 1, "plain": 2})
	if _, ok := out["camelcase"]; !ok {
		t.Fatalf("name not lowercased: %#v", out)
	}
	if _, ok := out["CamelCase"]; ok {
		t.Fatalf("original case kept: %#v", out)
	}
	if out["plain"] != 2 {
		t.Fatalf("plain name changed: %#v", out)
	}
}
