package app

import (
	"context"
	"fmt"
	"os"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  s.app.now().UTC(),
		Components: make(map[string]string),
	}

	// Self-map
	if _, err := os.Stat(s.app.Paths.SelfMapPath); err != nil {
		status.Status = "degraded"
		status.Components["self_map"] = fmt.Sprintf("unavailable: %v", err)
	} else {
		status.Components["self_map"] = "ok"
	}

	// Last analysis
	if r, ok := s.app.LastReport(); ok {
		status.Components["analysis"] = fmt.Sprintf("ok (%d modules, %d dependencies at %s)",
			r.Summary.Nodes, r.Summary.Edges, r.GeneratedAt.Format(time.RFC3339))
	} else {
		status.Components["analysis"] = "pending"
	}

	// History
	switch {
	case s.app.history == nil:
		status.Components["history"] = "disabled"
	case s.app.store != nil && s.app.store.LastRecovery() != nil:
		status.Components["history"] = fmt.Sprintf("ok (%s, recovered: %v)", s.app.store.Path(), s.app.store.LastRecovery())
	case s.app.store != nil:
		status.Components["history"] = "ok (" + s.app.store.Path() + ")"
	default:
		status.Components["history"] = "ok"
	}

	return status
}
