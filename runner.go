package weft

import (
	"context"
	"errors"

	"github.com/aretw0/weft/pkg/component"
)

// Run deploys and executes an application until ctx is cancelled or the
// graph stops itself (halt fault policy, or an external Stop). Teardown
// always runs; the returned error is the halting fault, if any.
func (s *System) Run(ctx context.Context, app *component.App) error {
	g, err := s.Deploy(app)
	if err != nil {
		return err
	}
	return s.RunGraph(ctx, g)
}

// RunGraph starts an already deployed graph and blocks until it finishes.
func (s *System) RunGraph(ctx context.Context, g *Graph) error {
	if err := g.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-g.Done():
	}

	stopCtx := context.WithoutCancel(ctx)
	if err := g.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return g.Err()
}
