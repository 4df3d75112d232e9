package app

import (
	"archgraph/internal/data/query"
	"context"
)

// QueryService returns a read-only query view over the configured self-map.
func (a *App) QueryService(ctx context.Context) (*query.Service, error) {
	g, err := a.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return query.NewService(g, a.classifier.Classify(g), a.history), nil
}
