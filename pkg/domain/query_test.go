package domain

import (
	"errors"
	"testing"
)

func TestQueryNormalizeDefaultsDateOperator(t *testing.T) {
	q, err := Query{DateCreated: 1620897685816}.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if q.DateCreatedOperator != DateOperatorGT {
		t.Fatalf("expected default gt, got %q", q.DateCreatedOperator)
	}
	if _, err := (Query{DateCreated: 1, DateCreatedOperator: "ge"}).Normalize(); err == nil {
		t.Fatal("unknown operator accepted")
	}
}

func TestQueryNormalizeRejectsHalfPair(t *testing.T) {
	var verr ValidationError
	if _, err := (Query{QueryKey: "k"}).Normalize(); !errors.As(err, &verr) {
		t.Fatalf("query_key alone: %v", err)
	}
	if _, err := (Query{QueryValue: "v"}).Normalize(); !errors.As(err, &verr) {
		t.Fatalf("query_value alone: %v", err)
	}
	if _, err := (Query{QueryKey: "k", QueryValue: "v"}).Normalize(); err != nil {
		t.Fatalf("full pair rejected: %v", err)
	}
}

func TestQueryNormalizeValidatesIDs(t *testing.T) {
	for _, q := range []Query{
		{ID: "nope"},
		{OriginID: "nope"},
		{ProjectID: "nope"},
	} {
		if _, err := q.Normalize(); err == nil {
			t.Fatalf("malformed id accepted: %#v", q)
		}
	}
}

func TestQueryMatchesDateCutoffInclusive(t *testing.T) {
	cutoff := int64(1620897685816)
	entity := func(ts int64) Entity {
		return Entity{ID: FormatHexID(1), Type: "dataset", DateCreated: ts}
	}
	gt := Query{Datatype: "dataset", DateCreated: cutoff, DateCreatedOperator: DateOperatorGT}
	lt := Query{Datatype: "dataset", DateCreated: cutoff, DateCreatedOperator: DateOperatorLT}

	if !gt.Matches(entity(cutoff)) || !lt.Matches(entity(cutoff)) {
		t.Fatal("comparison must be inclusive in both directions")
	}
	if !gt.Matches(entity(cutoff+1)) || gt.Matches(entity(cutoff-1)) {
		t.Fatal("gt filtering wrong")
	}
	if !lt.Matches(entity(cutoff-1)) || lt.Matches(entity(cutoff+1)) {
		t.Fatal("lt filtering wrong")
	}
}

func TestQueryMatchesAttributeFilter(t *testing.T) {
	e := Entity{Type: "session", Attributes: map[string]any{"path": "/data/x", "trials": 12}}
	if !(Query{QueryKey: "path", QueryValue: "/data/x"}).Matches(e) {
		t.Fatal("string attribute should match")
	}
	if (Query{QueryKey: "path", QueryValue: "/other"}).Matches(e) {
		t.Fatal("mismatched value matched")
	}
	if (Query{QueryKey: "missing", QueryValue: "x"}).Matches(e) {
		t.Fatal("missing key matched")
	}
	// Filter values cross the wire as text; numeric attributes compare by
	// their textual rendering.
	if !(Query{QueryKey: "trials", QueryValue: "12"}).Matches(e) {
		t.Fatal("numeric attribute should match its textual form")
	}
}

func TestBoolDefault(t *testing.T) {
	if !BoolDefault(nil, true) || BoolDefault(nil, false) {
		t.Fatal("nil must yield the default")
	}
	if BoolDefault(Bool(false), true) {
		t.Fatal("explicit false overridden")
	}
}
