// Package offline reproduces the registry operation surface against a
// local hierarchical document. The mirror exclusively owns its document;
// FindEntity lends live references whose in-place mutation is visible to
// subsequent reads. In editable mode every mutation synchronously rewrites
// the whole document through the snapshot store, making the mirror usable
// as a lightweight local database across process runs.
package offline

import (
	"context"
	"strings"
	"time"

	"flexilims/internal/snapshot"
	"flexilims/pkg/domain"
)

// Logger is the minimal structured logging surface the mirror emits to.
// *slog.Logger satisfies it; the default is a no-op.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

var _ domain.Registry = (*Mirror)(nil)

// Config holds construction parameters for the offline mirror.
type Config struct {
	// Store persists the document. Required.
	Store snapshot.Store

	// Editable enables mutations. A read-only mirror rejects Create and
	// UpdateOne; a writable one persists after every successful mutation.
	Editable bool

	// CreatedBy stamps entities created offline. Defaults to "offline".
	CreatedBy string
}

// Mirror is an offline registry backed by a nested document. Not safe for
// concurrent use.
type Mirror struct {
	store     snapshot.Store
	doc       domain.Document
	editable  bool
	createdBy string
	logger    Logger
	clock     Clock
}

// Option configures optional mirror collaborators.
type Option func(*Mirror)

// WithLogger injects a structured logger.
func WithLogger(logger Logger) Option {
	return func(m *Mirror) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(m *Mirror) {
		if clock != nil {
			m.clock = clock
		}
	}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// New loads the document from the configured store and returns a mirror
// over it.
func New(ctx context.Context, cfg Config, opts ...Option) (*Mirror, error) {
	if cfg.Store == nil {
		return nil, domain.Validationf("offline mirror requires a snapshot store")
	}
	createdBy := cfg.CreatedBy
	if createdBy == "" {
		createdBy = "offline"
	}
	m := &Mirror{
		store:     cfg.Store,
		editable:  cfg.Editable,
		createdBy: createdBy,
		logger:    noopLogger{},
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
	}
	for _, opt := range opts {
		opt(m)
	}
	doc, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.doc = doc
	return m, nil
}

// Document returns the live document. Mutating it bypasses persistence.
func (m *Mirror) Document() domain.Document { return m.doc }

// Editable reports whether mutations are enabled.
func (m *Mirror) Editable() bool { return m.editable }

// FindEntity locates the node with the given id and returns a live
// reference into the document: in-place edits through it are visible to
// subsequent reads. Returns a NotFoundError when the id is absent.
func (m *Mirror) FindEntity(id string) (*domain.Node, error) {
	if err := domain.ValidateHexID("id", id); err != nil {
		return nil, err
	}
	node := m.doc.Find(id)
	if node == nil {
		return nil, domain.NotFoundError{Msg: "no entity with id " + id}
	}
	return node, nil
}

// Get flattens the document into one row per entity and applies the same
// filter predicates as the online client. Rows are copies.
func (m *Mirror) Get(_ context.Context, q domain.Query) ([]domain.Entity, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	var out []domain.Entity
	for _, e := range m.doc.Flatten() {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetChildren returns copies of the direct children of the entity with the
// given id.
func (m *Mirror) GetChildren(_ context.Context, id string) ([]domain.Entity, error) {
	node, err := m.FindEntity(id)
	if err != nil {
		return nil, err
	}
	var out []domain.Entity
	for _, child := range node.Children {
		out = append(out, child.Entity())
	}
	return out, nil
}

// ProjectInfo is not available offline: the mirror has no project registry.
func (m *Mirror) ProjectInfo(context.Context) ([]domain.Project, error) {
	return nil, domain.NotImplementedError{Op: "get_project_info"}
}

// Create adds an entity to the document. The id is the lowest unused
// non-negative integer rendered as a zero-padded 24-hex string. With an
// origin the entity nests under its parent; without one it becomes a new
// root. Names must be unique across the document.
func (m *Mirror) Create(ctx context.Context, req domain.CreateRequest) (domain.Entity, error) {
	if err := m.requireEditable(); err != nil {
		return domain.Entity{}, err
	}
	if req.Name == "" {
		return domain.Entity{}, domain.Validationf("create requires a name")
	}
	if m.nameTaken(req.Name) {
		return domain.Entity{}, domain.Validationf("name %q is already taken", req.Name)
	}
	if req.OriginID != "" {
		if err := domain.ValidateHexID("origin_id", req.OriginID); err != nil {
			return domain.Entity{}, err
		}
	}
	if req.ProjectID != "" {
		if err := domain.ValidateHexID("project_id", req.ProjectID); err != nil {
			return domain.Entity{}, err
		}
	}
	attrs := domain.CloneAttributes(req.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	warnings, err := domain.CheckAttributeNames(attrs, false)
	for _, w := range warnings {
		m.logger.Warn(w)
	}
	if err != nil {
		return domain.Entity{}, err
	}
	if err := domain.CheckSerializable(attrs); err != nil {
		return domain.Entity{}, err
	}
	for _, w := range domain.CleanAttributes(attrs) {
		m.logger.Warn(w)
	}
	attrs = domain.LowercaseAttributeNames(attrs)

	now := m.clock.Now().UnixMilli()
	node := &domain.Node{
		ID:          m.doc.NextID(),
		Type:        req.Datatype,
		Name:        req.Name,
		OriginID:    req.OriginID,
		ProjectID:   req.ProjectID,
		CreatedBy:   m.createdBy,
		DateCreated: now,
		DateUpdated: now,
		Attributes:  attrs,
	}
	if req.OriginID == "" {
		m.doc[node.Name] = node
	} else {
		parent := m.doc.Find(req.OriginID)
		if parent == nil {
			return domain.Entity{}, domain.NotFoundError{Msg: "no entity with id " + req.OriginID}
		}
		if parent.Children == nil {
			parent.Children = map[string]*domain.Node{}
		}
		parent.Children[node.Name] = node
	}
	if err := m.persist(ctx); err != nil {
		return domain.Entity{}, err
	}
	return node.Entity(), nil
}

// UpdateOne mutates the found entity in place. Attribute merging is
// shallow: only top-level keys supplied in the request are touched, nested
// values replace wholesale. With allow-nulls disabled, supplied attributes
// whose sanitized value is empty leave the stored value unchanged. A new
// OriginID moves the entity (and its subtree) under the new parent; a new
// ProjectID rebinds it.
func (m *Mirror) UpdateOne(ctx context.Context, req domain.UpdateOneRequest) (domain.Entity, error) {
	if err := m.requireEditable(); err != nil {
		return domain.Entity{}, err
	}
	node, err := m.FindEntity(req.ID)
	if err != nil {
		return domain.Entity{}, err
	}
	if req.Datatype != "" && node.Type != req.Datatype {
		return domain.Entity{}, domain.Validationf("entity %s is a %s, not a %s", req.ID, node.Type, req.Datatype)
	}
	if req.ProjectID != "" {
		if err := domain.ValidateHexID("project_id", req.ProjectID); err != nil {
			return domain.Entity{}, err
		}
	}
	var newParent *domain.Node
	if req.OriginID != "" && req.OriginID != node.OriginID {
		if err := domain.ValidateHexID("origin_id", req.OriginID); err != nil {
			return domain.Entity{}, err
		}
		newParent = m.doc.Find(req.OriginID)
		if newParent == nil {
			return domain.Entity{}, domain.NotFoundError{Msg: "no entity with id " + req.OriginID}
		}
		if newParent == node || nodeInSubtree(node, newParent) {
			return domain.Entity{}, domain.Validationf("cannot move entity %s under its own descendant", req.ID)
		}
	}
	allowNulls := domain.BoolDefault(req.AllowNulls, true)

	if req.Attributes != nil {
		attrs := domain.CloneAttributes(req.Attributes)
		warnings, err := domain.CheckAttributeNames(attrs, true)
		for _, w := range warnings {
			m.logger.Warn(w)
		}
		if err != nil {
			return domain.Entity{}, err
		}
		if err := domain.CheckSerializable(attrs); err != nil {
			return domain.Entity{}, err
		}
		for _, w := range domain.CleanAttributes(attrs) {
			m.logger.Warn(w)
		}
		if node.Attributes == nil {
			node.Attributes = map[string]any{}
		}
		for name, value := range attrs {
			if !allowNulls && domain.IsEmptyValue(value) {
				continue
			}
			node.Attributes[name] = value
		}
	}
	if newParent != nil {
		m.reparent(node, newParent)
	}
	if req.ProjectID != "" {
		node.ProjectID = req.ProjectID
	}
	if req.Name != "" && req.Name != node.Name {
		if m.nameTaken(req.Name) {
			return domain.Entity{}, domain.Validationf("name %q is already taken", req.Name)
		}
		m.rename(node, req.Name)
	}
	node.DateUpdated = m.clock.Now().UnixMilli()

	if err := m.persist(ctx); err != nil {
		return domain.Entity{}, err
	}
	return node.Entity(), nil
}

// UpdateMany is not available offline: the mirror has no multi-attribute
// index.
func (m *Mirror) UpdateMany(context.Context, domain.UpdateManyRequest) (string, error) {
	return "", domain.NotImplementedError{Op: "update_many"}
}

// Delete is not available offline.
func (m *Mirror) Delete(context.Context, string) (string, error) {
	return "", domain.NotImplementedError{Op: "delete"}
}

func (m *Mirror) requireEditable() error {
	if !m.editable {
		return domain.Validationf("offline mirror is read only; construct with Editable to mutate")
	}
	return nil
}

func (m *Mirror) nameTaken(name string) bool {
	taken := false
	m.doc.Walk(func(n *domain.Node) {
		if n.Name == name {
			taken = true
		}
	})
	return taken
}

// reparent detaches the node from its current container, either the
// document root or its old parent's children map, and attaches it under
// the new parent. The node's subtree moves with it.
func (m *Mirror) reparent(node, parent *domain.Node) {
	if node.OriginID == "" {
		if m.doc[node.Name] == node {
			delete(m.doc, node.Name)
		}
	} else if old := m.doc.Find(node.OriginID); old != nil && old.Children[node.Name] == node {
		delete(old.Children, node.Name)
	}
	node.OriginID = parent.ID
	if parent.Children == nil {
		parent.Children = map[string]*domain.Node{}
	}
	parent.Children[node.Name] = node
}

// nodeInSubtree reports whether target sits anywhere below root.
func nodeInSubtree(root, target *domain.Node) bool {
	for _, child := range root.Children {
		if child == target || nodeInSubtree(child, target) {
			return true
		}
	}
	return false
}

// rename rekeys the node under its container, either the document root or
// its parent's children map.
func (m *Mirror) rename(node *domain.Node, name string) {
	old := node.Name
	node.Name = name
	if node.OriginID == "" {
		if m.doc[old] == node {
			delete(m.doc, old)
			m.doc[name] = node
		}
		return
	}
	if parent := m.doc.Find(node.OriginID); parent != nil && parent.Children[old] == node {
		delete(parent.Children, old)
		parent.Children[name] = node
	}
}

func (m *Mirror) persist(ctx context.Context) error {
	if err := m.store.Save(ctx, m.doc); err != nil {
		m.logger.Error("persist offline document", "error", err)
		return err
	}
	return nil
}

// normalizeRootTypes lowercases and deduplicates a root datatype list.
func normalizeRootTypes(rootTypes []string) []string {
	if len(rootTypes) == 0 {
		return []string{string(domain.DatatypeMouse)}
	}
	seen := make(map[string]struct{}, len(rootTypes))
	out := make([]string, 0, len(rootTypes))
	for _, t := range rootTypes {
		t = strings.ToLower(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
