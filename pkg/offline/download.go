package offline

import (
	"context"

	"flexilims/pkg/domain"
)

// Source is the read surface Download needs from a live session.
type Source interface {
	Get(ctx context.Context, q domain.Query) ([]domain.Entity, error)
	GetChildren(ctx context.Context, id string) ([]domain.Entity, error)
}

// Download builds an offline document from a live registry session by
// fetching root entities of the given datatypes and recursively attaching
// their children. Entities of a root datatype that turn out to have a
// parent are skipped with a log line. Defaults to the mouse datatype when
// no root types are given.
func Download(ctx context.Context, source Source, logger Logger, rootTypes ...string) (domain.Document, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	doc := domain.Document{}
	for _, datatype := range normalizeRootTypes(rootTypes) {
		candidates, err := source.Get(ctx, domain.Query{Datatype: datatype})
		if err != nil {
			return nil, err
		}
		for _, e := range candidates {
			if !e.IsRoot() {
				logger.Info("entity is of a root datatype but not root, skipping",
					"name", e.Name, "type", datatype)
				continue
			}
			node, err := downloadChildren(ctx, source, e)
			if err != nil {
				return nil, err
			}
			doc[e.Name] = node
		}
	}
	return doc, nil
}

func downloadChildren(ctx context.Context, source Source, e domain.Entity) (*domain.Node, error) {
	node := domain.NodeFromEntity(e)
	children, err := source.GetChildren(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	for _, child := range children {
		childNode, err := downloadChildren(ctx, source, child)
		if err != nil {
			return nil, err
		}
		if node.Children == nil {
			node.Children = map[string]*domain.Node{}
		}
		node.Children[child.Name] = childNode
	}
	return node, nil
}
