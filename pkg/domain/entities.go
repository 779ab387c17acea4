// Package domain defines the records, attribute handling rules, and error
// taxonomy shared by the online registry client and the offline mirror.
package domain

// Datatype identifies the server-defined vocabulary of entity types.
type Datatype string

// Well-known datatypes configured on the registry. The set is server-defined
// and open ended; these constants cover the types the lab schema ships with.
const (
	DatatypeMouse     Datatype = "mouse"
	DatatypeSession   Datatype = "session"
	DatatypeRecording Datatype = "recording"
	DatatypeDataset   Datatype = "dataset"
	DatatypeSample    Datatype = "sample"
)

// Entity is the fundamental record exchanged with the registry. Field names
// mirror the wire format exactly: the registry mixes snake_case relation
// fields with camelCase bookkeeping fields.
type Entity struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Name          string         `json:"name"`
	OriginID      string         `json:"origin_id,omitempty"`
	ProjectID     string         `json:"project_id,omitempty"`
	CreatedBy     string         `json:"createdBy,omitempty"`
	DateCreated   int64          `json:"dateCreated,omitempty"`
	DateUpdated   int64          `json:"dateUpdated,omitempty"`
	IncrementalID int64          `json:"incrementalId,omitempty"`
	Attributes    map[string]any `json:"attributes"`
}

// Clone returns a deep copy of the entity. Attribute values are copied
// recursively so mutating the clone never aliases the source.
func (e Entity) Clone() Entity {
	cp := e
	cp.Attributes = CloneAttributes(e.Attributes)
	return cp
}

// IsRoot reports whether the entity has no parent.
func (e Entity) IsRoot() bool { return e.OriginID == "" }

// Project is a read-only scoping descriptor. The client only queries
// projects, it never mutates them.
type Project struct {
	ID   string `json:"id,omitempty"`
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// reservedFields are entity-level field names that attributes must never
// shadow. Collisions would make flattened rows ambiguous.
var reservedFields = map[string]struct{}{
	"id":             {},
	"type":           {},
	"name":           {},
	"origin_id":      {},
	"project_id":     {},
	"incrementalId":  {},
	"createdBy":      {},
	"dateCreated":    {},
	"dateUpdated":    {},
	"objects":        {},
	"customEntities": {},
	"project":        {},
	"children":       {},
}

// IsReservedField reports whether name collides with a reserved entity field.
func IsReservedField(name string) bool {
	_, ok := reservedFields[name]
	return ok
}

// CloneAttributes deep copies an attribute mapping, recursing through nested
// maps and sequences. A nil input yields nil.
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneAttributes(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
