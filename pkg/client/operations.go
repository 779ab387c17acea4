package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"flexilims/pkg/domain"
)

// Compile-time check that the online client implements the shared
// operation surface.
var _ domain.Registry = (*Client)(nil)

// Get returns the entities matching the query. An absent project falls
// back to the session's bound project; an absent date operator defaults to
// "gt" when a cutoff is supplied.
func (c *Client) Get(ctx context.Context, q domain.Query) (entities []domain.Entity, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "get", start, err) }()

	if q.ProjectID == "" {
		q.ProjectID = c.projectID
	}
	q, err = q.Normalize()
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	setParam(params, "type", q.Datatype)
	setParam(params, "project_id", q.ProjectID)
	setParam(params, "id", q.ID)
	setParam(params, "name", q.Name)
	setParam(params, "origin_id", q.OriginID)
	setParam(params, "query_key", q.QueryKey)
	setParam(params, "query_value", q.QueryValue)
	setParam(params, "created_by", q.CreatedBy)
	if q.DateCreated != 0 {
		params.Set("date_created", strconv.FormatInt(q.DateCreated, 10))
		params.Set("date_created_operator", q.DateCreatedOperator)
	}
	if _, err = c.execute(ctx, "GET", "get", params, nil, &entities); err != nil {
		return nil, err
	}
	c.recordAudit("get", "queried type "+q.Datatype)
	return entities, nil
}

// GetChildren returns the entities whose origin_id equals id.
func (c *Client) GetChildren(ctx context.Context, id string) (children []domain.Entity, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "get_children", start, err) }()

	if err = domain.ValidateHexID("id", id); err != nil {
		return nil, err
	}
	params := url.Values{"id": []string{id}}
	if _, err = c.execute(ctx, "GET", "get-children", params, nil, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// ProjectInfo lists the project descriptors available to the
// authenticated user.
func (c *Client) ProjectInfo(ctx context.Context) (projects []domain.Project, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "project_info", start, err) }()

	if _, err = c.execute(ctx, "GET", "projects", nil, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// createPayload is the save endpoint's JSON body.
type createPayload struct {
	Type             string         `json:"type"`
	Name             string         `json:"name"`
	ProjectID        string         `json:"project_id"`
	OriginID         string         `json:"origin_id,omitempty"`
	Attributes       map[string]any `json:"attributes"`
	OtherRelations   []string       `json:"other_relations,omitempty"`
	StrictValidation bool           `json:"strict_validation"`
}

// Create stores a new entity. The project must resolve to a non-empty id
// client-side, attribute names and values are validated and sanitized
// before anything reaches the wire, and strict validation defaults to on.
func (c *Client) Create(ctx context.Context, req domain.CreateRequest) (created domain.Entity, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "create", start, err) }()

	projectID := req.ProjectID
	if projectID == "" {
		projectID = c.projectID
	}
	if projectID == "" {
		return domain.Entity{}, domain.Validationf("create requires a project_id, none supplied and none bound to the session")
	}
	if err = domain.ValidateHexID("project_id", projectID); err != nil {
		return domain.Entity{}, err
	}
	if req.OriginID != "" {
		if err = domain.ValidateHexID("origin_id", req.OriginID); err != nil {
			return domain.Entity{}, err
		}
	}
	attrs := domain.CloneAttributes(req.Attributes)
	if attrs == nil {
		attrs = map[string]any{}
	}
	if err = c.prepareAttributes(attrs, false); err != nil {
		return domain.Entity{}, err
	}
	// The registry lowercases attribute names on create; doing it here
	// keeps the payload identical to what gets stored.
	attrs = domain.LowercaseAttributeNames(attrs)

	payload := createPayload{
		Type:             req.Datatype,
		Name:             req.Name,
		ProjectID:        projectID,
		OriginID:         req.OriginID,
		Attributes:       attrs,
		OtherRelations:   req.OtherRelations,
		StrictValidation: domain.BoolDefault(req.Strict, true),
	}
	if _, err = c.execute(ctx, "POST", "save", nil, payload, &created); err != nil {
		return domain.Entity{}, err
	}
	c.recordAudit("create", "created "+req.Datatype+" "+req.Name)
	return created, nil
}

// updateOnePayload is the update-one endpoint's JSON body.
type updateOnePayload struct {
	ID               string         `json:"id"`
	Type             string         `json:"type"`
	Name             string         `json:"name,omitempty"`
	OriginID         string         `json:"origin_id,omitempty"`
	ProjectID        string         `json:"project_id"`
	Attributes       map[string]any `json:"attributes,omitempty"`
	StrictValidation bool           `json:"strict_validation"`
	AllowNulls       bool           `json:"allow_nulls"`
}

// UpdateOne updates a single entity. With allow-nulls enabled (the
// default), attribute values that sanitize to the empty marker overwrite
// the stored value; disabled, such values are dropped from the payload so
// the stored value survives.
func (c *Client) UpdateOne(ctx context.Context, req domain.UpdateOneRequest) (updated domain.Entity, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "update_one", start, err) }()

	if err = domain.ValidateHexID("id", req.ID); err != nil {
		return domain.Entity{}, err
	}
	if req.OriginID != "" {
		if err = domain.ValidateHexID("origin_id", req.OriginID); err != nil {
			return domain.Entity{}, err
		}
	}
	projectID := req.ProjectID
	if projectID == "" {
		projectID = c.projectID
	}
	allowNulls := domain.BoolDefault(req.AllowNulls, true)

	var attrs map[string]any
	if req.Attributes != nil {
		attrs = domain.CloneAttributes(req.Attributes)
		if err = c.prepareAttributes(attrs, true); err != nil {
			return domain.Entity{}, err
		}
		if !allowNulls {
			for name, value := range attrs {
				if domain.IsEmptyValue(value) {
					delete(attrs, name)
				}
			}
		}
	}

	payload := updateOnePayload{
		ID:               req.ID,
		Type:             req.Datatype,
		Name:             req.Name,
		OriginID:         req.OriginID,
		ProjectID:        projectID,
		Attributes:       attrs,
		StrictValidation: domain.BoolDefault(req.Strict, true),
		AllowNulls:       allowNulls,
	}
	if _, err = c.execute(ctx, "PUT", "update-one", nil, payload, &updated); err != nil {
		return domain.Entity{}, err
	}
	c.recordAudit("update_one", "updated "+req.Datatype+" "+req.ID)
	return updated, nil
}

// UpdateMany bulk-updates every entity of a datatype matching a single
// query attribute, setting update_key to update_value. The registry
// matches keys case-sensitively while the UI displays them
// case-insensitively, hence the lowercase warnings.
func (c *Client) UpdateMany(ctx context.Context, req domain.UpdateManyRequest) (message string, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "update_many", start, err) }()

	projectID := req.ProjectID
	if projectID == "" {
		projectID = c.projectID
	}
	for _, key := range []string{req.UpdateKey, req.QueryKey} {
		if key != "" && key != strings.ToLower(key) {
			c.logger.Warn("attribute key is not lowercase; bulk matching is case sensitive", "key", key)
		}
	}
	params := url.Values{}
	setParam(params, "type", req.Datatype)
	setParam(params, "project_id", projectID)
	setParam(params, "update_key", req.UpdateKey)
	setParam(params, "update_value", req.UpdateValue)
	setParam(params, "query_key", req.QueryKey)
	setParam(params, "query_value", req.QueryValue)
	params.Set("strict_validation", strconv.FormatBool(domain.BoolDefault(req.Strict, false)))

	message, err = c.execute(ctx, "PUT", "update-many", params, nil, nil)
	if err != nil {
		return "", err
	}
	c.recordAudit("update_many", "bulk updated type "+req.Datatype)
	return message, nil
}

// Delete removes an entity. The registry rejects deleting an entity that
// is already gone or still has dependents.
func (c *Client) Delete(ctx context.Context, id string) (message string, err error) {
	start := c.clock.Now()
	defer func() { c.observe(ctx, "delete", start, err) }()

	if err = domain.ValidateHexID("id", id); err != nil {
		return "", err
	}
	params := url.Values{"id": []string{id}}
	message, err = c.execute(ctx, "DELETE", "delete", params, nil, nil)
	if err != nil {
		return "", err
	}
	c.recordAudit("delete", "deleted "+id)
	return message, nil
}

// prepareAttributes runs the write-path checks in order: naming policy,
// serializability, then sanitization. Warnings surface through the logger.
// warnCase is set on updates, where names keep their case and a mixed-case
// name can shadow its lowercase sibling on the UI.
func (c *Client) prepareAttributes(attrs map[string]any, warnCase bool) error {
	warnings, err := domain.CheckAttributeNames(attrs, warnCase)
	for _, w := range warnings {
		c.logger.Warn(w)
	}
	if err != nil {
		return err
	}
	if err := domain.CheckSerializable(attrs); err != nil {
		return err
	}
	for _, w := range domain.CleanAttributes(attrs) {
		c.logger.Warn(w)
	}
	return nil
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
