package app

import (
	"archgraph/internal/core/ports"
	"archgraph/internal/core/watcher"
	"context"
	"log/slog"
)

// Watch re-runs Analyze whenever the self-map changes, until ctx is done.
// onReport receives every result, failed passes included.
func (a *App) Watch(ctx context.Context, onReport func(ports.AnalysisReport, error)) error {
	w, err := watcher.NewWatcher(
		[]string{a.Paths.SelfMapPath},
		watcher.Options{
			Debounce:    a.Config.Watch.Debounce,
			MinInterval: a.Config.Watch.MinInterval,
		},
		func(paths []string) {
			slog.Info("self-map changed", "paths", paths)
			report, err := a.Analyze(ctx, ports.AnalyzeRequest{})
			if onReport != nil {
				onReport(report, err)
			}
		},
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Watch(); err != nil {
		return err
	}
	slog.Info("watching self-map", "path", a.Paths.SelfMapPath)
	<-ctx.Done()
	return nil
}
