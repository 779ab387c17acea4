package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestIsHexID(t *testing.T) {
	valid := []string{
		"605a36c53b38df2abd7757e9",
		"000000000000000000000000",
		"ABCDEF0123456789abcdef01",
	}
	for _, s := range valid {
		if !IsHexID(s) {
			t.Fatalf("%q should be accepted", s)
		}
	}
	invalid := []string{
		"",
		"605a36c53b38df2abd7757e",    // 23 chars
		"605a36c53b38df2abd7757e9a",  // 25 chars
		"605a36c53b38df2abd7757eg",   // non-hex
		"605a36c53b38df2abd7757e 9 ", // whitespace
	}
	for _, s := range invalid {
		if IsHexID(s) {
			t.Fatalf("%q should be rejected", s)
		}
	}
}

func TestValidateHexIDNamesTheField(t *testing.T) {
	err := ValidateHexID("project_id", "not-hex")
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Msg, "project_id") {
		t.Fatalf("message should name the field: %q", verr.Msg)
	}
	if err := ValidateHexID("id", "605a36c53b38df2abd7757e9"); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
}

func TestFormatHexID(t *testing.T) {
	if got := FormatHexID(0); got != "000000000000000000000000" {
		t.Fatalf("zero: %q", got)
	}
	if got := FormatHexID(255); got != "0000000000000000000000ff" {
		t.Fatalf("255: %q", got)
	}
	if !IsHexID(FormatHexID(1 << 40)) {
		t.Fatalf("formatted id not a valid hex id")
	}
}
