package domain

import (
	"context"
	"fmt"
)

// Date-created comparison operators accepted by the registry. The remote
// comparison is inclusive in both directions.
const (
	DateOperatorGT = "gt"
	DateOperatorLT = "lt"
)

// Query describes an entity read. Zero values mean "no filter". QueryKey
// and QueryValue must be supplied together and express the single-attribute
// filter the registry supports; multi-attribute filtering is a remote
// limitation, not a client choice.
type Query struct {
	Datatype   string
	ProjectID  string
	ID         string
	Name       string
	OriginID   string
	QueryKey   string
	QueryValue string
	CreatedBy  string
	// DateCreated is an epoch-milliseconds cutoff; zero means unset.
	DateCreated int64
	// DateCreatedOperator is "gt" or "lt"; empty defaults to "gt" when
	// DateCreated is set. Anything else is rejected client-side.
	DateCreatedOperator string
}

// Normalize validates the query and fills defaults. Identifier fields are
// checked for hexadecimal form and the attribute filter pair for
// completeness before anything reaches the wire.
func (q Query) Normalize() (Query, error) {
	if (q.QueryKey == "") != (q.QueryValue == "") {
		return q, Validationf("query_key and query_value must be supplied together")
	}
	if q.ID != "" {
		if err := ValidateHexID("id", q.ID); err != nil {
			return q, err
		}
	}
	if q.OriginID != "" {
		if err := ValidateHexID("origin_id", q.OriginID); err != nil {
			return q, err
		}
	}
	if q.ProjectID != "" {
		if err := ValidateHexID("project_id", q.ProjectID); err != nil {
			return q, err
		}
	}
	switch q.DateCreatedOperator {
	case "":
		if q.DateCreated != 0 {
			q.DateCreatedOperator = DateOperatorGT
		}
	case DateOperatorGT, DateOperatorLT:
	default:
		return q, Validationf("date_created_operator must be %q or %q", DateOperatorGT, DateOperatorLT)
	}
	return q, nil
}

// Matches applies the query predicates to a single entity. It implements
// the same filter semantics the registry applies server-side and is what
// the offline mirror runs over its flattened rows. The project filter is
// intentionally absent: an offline document is always scoped to one
// project.
func (q Query) Matches(e Entity) bool {
	if q.Datatype != "" && e.Type != q.Datatype {
		return false
	}
	if q.ID != "" && e.ID != q.ID {
		return false
	}
	if q.Name != "" && e.Name != q.Name {
		return false
	}
	if q.OriginID != "" && e.OriginID != q.OriginID {
		return false
	}
	if q.CreatedBy != "" && e.CreatedBy != q.CreatedBy {
		return false
	}
	if q.DateCreated != 0 {
		switch q.DateCreatedOperator {
		case DateOperatorLT:
			if e.DateCreated > q.DateCreated {
				return false
			}
		default:
			if e.DateCreated < q.DateCreated {
				return false
			}
		}
	}
	if q.QueryKey != "" {
		v, ok := e.Attributes[q.QueryKey]
		if !ok {
			return false
		}
		// The filter value crosses the wire as text, so non-string
		// attribute values compare by their textual rendering.
		if s, isStr := v.(string); isStr {
			if s != q.QueryValue {
				return false
			}
		} else if fmt.Sprint(v) != q.QueryValue {
			return false
		}
	}
	return true
}

// CreateRequest carries the arguments of a create operation. Strict
// defaults to true: the registry rejects attribute names absent from the
// datatype's configured schema unless explicitly relaxed.
type CreateRequest struct {
	Datatype       string
	Name           string
	Attributes     map[string]any
	ProjectID      string
	OriginID       string
	OtherRelations []string
	Strict         *bool
}

// UpdateOneRequest carries the arguments of a single-entity update. Any
// zero-valued optional field is left untouched on the stored entity.
/// AllowNulls defaults to true: values that sanitize to the empty marker
// overwrite the stored value; when false such values are dropped from the
// payload entirely and the stored value survives.
type UpdateOneRequest struct {
	ID         string
	Datatype   string
	OriginID   string
	Name       string
	Attributes map[string]any
	Strict     *bool
	AllowNulls *bool
	ProjectID  string
}

// UpdateManyRequest carries the arguments of a bulk update keyed by a
// single query attribute. Strict defaults to false for bulk operations.
type UpdateManyRequest struct {
	Datatype    string
	UpdateKey   string
	UpdateValue string
	QueryKey    string
	QueryValue  string
	ProjectID   string
	Strict      *bool
}

// Registry is the operation surface shared by the online client and the
// offline mirror. Offline, UpdateMany, ProjectInfo and Delete fail with
// NotImplementedError.
type Registry interface {
	Get(ctx context.Context, q Query) ([]Entity, error)
	GetChildren(ctx context.Context, id string) ([]Entity, error)
	ProjectInfo(ctx context.Context) ([]Project, error)
	Create(ctx context.Context, req CreateRequest) (Entity, error)
	UpdateOne(ctx context.Context, req UpdateOneRequest) (Entity, error)
	UpdateMany(ctx context.Context, req UpdateManyRequest) (string, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Bool returns a pointer to b, for the tri-state flags on request structs.
func Bool(b bool) *bool { return &b }

// BoolDefault dereferences p, falling back to def when unset.
func BoolDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
