package domain

// Node is one entity inside an offline document: the entity's own fields
// plus its children keyed by child name. The JSON/YAML shape matches the
// downloaded database format byte for byte modulo encoding: top-level keys
// are root entity names, and every node nests a "children" mapping.
type Node struct {
	ID            string         `json:"id" yaml:"id"`
	Type          string         `json:"type" yaml:"type"`
	Name          string         `json:"name" yaml:"name"`
	OriginID      string         `json:"origin_id,omitempty" yaml:"origin_id,omitempty"`
	ProjectID     string         `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	CreatedBy     string         `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	DateCreated   int64          `json:"dateCreated,omitempty" yaml:"dateCreated,omitempty"`
	DateUpdated   int64          `json:"dateUpdated,omitempty" yaml:"dateUpdated,omitempty"`
	IncrementalID int64          `json:"incrementalId,omitempty" yaml:"incrementalId,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children      map[string]*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Document is a full offline database: root entity names to their trees.
type Document map[string]*Node

// Entity renders the node as a flat entity record, children stripped.
// The attributes are deep copied so callers can mutate the row freely.
func (n *Node) Entity() Entity {
	return Entity{
		ID:            n.ID,
		Type:          n.Type,
		Name:          n.Name,
		OriginID:      n.OriginID,
		ProjectID:     n.ProjectID,
		CreatedBy:     n.CreatedBy,
		DateCreated:   n.DateCreated,
		DateUpdated:   n.DateUpdated,
		IncrementalID: n.IncrementalID,
		Attributes:    CloneAttributes(n.Attributes),
	}
}

// NodeFromEntity builds a childless node from an entity record.
func NodeFromEntity(e Entity) *Node {
	return &Node{
		ID:            e.ID,
		Type:          e.Type,
		Name:          e.Name,
		OriginID:      e.OriginID,
		ProjectID:     e.ProjectID,
		CreatedBy:     e.CreatedBy,
		DateCreated:   e.DateCreated,
		DateUpdated:   e.DateUpdated,
		IncrementalID: e.IncrementalID,
		Attributes:    CloneAttributes(e.Attributes),
	}
}

// Clone deep copies the node and its subtree.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Attributes = CloneAttributes(n.Attributes)
	if n.Children != nil {
		cp.Children = make(map[string]*Node, len(n.Children))
		for name, child := range n.Children {
			cp.Children[name] = child.Clone()
		}
	}
	return &cp
}

// Clone deep copies the whole document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for name, node := range d {
		out[name] = node.Clone()
	}
	return out
}

// Find locates the node with the given id by depth-first search and returns
// a live reference into the document: mutations through the returned node
// are visible to subsequent reads. Returns nil when the id is absent.
func (d Document) Find(id string) *Node {
	for _, node := range d {
		if found := findNode(node, id); found != nil {
			return found
		}
	}
	return nil
}

func findNode(n *Node, id string) *Node {
	if n.ID == id {
		return n
	}
	for _, child := range n.Children {
		if found := findNode(child, id); found != nil {
			return found
		}
	}
	return nil
}

// Walk visits every node in the document depth-first, parents before
// children. Iteration order between siblings is unspecified.
func (d Document) Walk(visit func(*Node)) {
	for _, node := range d {
		walkNode(node, visit)
	}
}

func walkNode(n *Node, visit func(*Node)) {
	visit(n)
	for _, child := range n.Children {
		walkNode(child, visit)
	}
}

// Flatten renders the document as flat entity rows, one per node, children
// stripped. Rows are deep copies; mutating them does not touch the
// document.
func (d Document) Flatten() []Entity {
	var out []Entity
	d.Walk(func(n *Node) {
		out = append(out, n.Entity())
	})
	return out
}

// NextID scans existing ids for the lowest unused non-negative integer and
// renders it as a 24-character hexadecimal identifier. Ids that do not
// parse as plain integers (remote-assigned ObjectIds) are ignored by the
// scan; generated ids remain unique regardless.
func (d Document) NextID() string {
	used := make(map[uint64]struct{})
	d.Walk(func(n *Node) {
		if v, ok := parseHexID(n.ID); ok {
			used[v] = struct{}{}
		}
	})
	var candidate uint64
	for {
		if _, taken := used[candidate]; !taken {
			return FormatHexID(candidate)
		}
		candidate++
	}
}

func parseHexID(s string) (uint64, bool) {
	if len(s) != HexIDLength {
		return 0, false
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d uint64
		switch {
		case c >= '0' && c <= '9':
			d = uint64(c - '0')
		case c >= 'a' && c <= 'f':
			d = uint64(c-'a') + 10
		default:
			return 0, false
		}
		// Ids beyond 16 hex digits of value cannot come from the
		// generator; skip them to avoid overflow.
		if v > (1<<60)-1 {
			return 0, false
		}
		v = v<<4 | d
	}
	return v, true
}
