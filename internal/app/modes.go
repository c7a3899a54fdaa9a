package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ScanMode runs discovery and sweeping only: the scanner builds and maintains
// the active set, but nothing is evaluated or reported. Useful for tuning
// detection thresholds against live volume.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in scan mode")
	return deps.Orchestrator.RunScanOnly(ctx)
}

// FullMode runs the complete pipeline: discovery, evaluation, sweeping and,
// when configured, periodic archival of old opportunities to object storage.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("running in full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Orchestrator.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			err := deps.Archiver.RunLoop(ctx, a.cfg.S3.ArchiveInterval.Duration)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	return g.Wait()
}
