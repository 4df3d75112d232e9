package query

import (
	"archgraph/internal/data/history"
	"archgraph/internal/engine/semantic"
)

type ModuleSummary struct {
	Name                   string        `json:"name"`
	Role                   semantic.Role `json:"role"`
	Layer                  int           `json:"layer"`
	DependencyCount        int           `json:"fan_out"`
	ReverseDependencyCount int           `json:"fan_in"`
}

type ModuleDetails struct {
	ModuleSummary
	Dependencies        []string `json:"dependencies"`
	ReverseDependencies []string `json:"reverse_dependencies"`
	InCycle             bool     `json:"in_cycle"`
}

type TraceResult struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Path  []string `json:"path"`
	Depth int      `json:"depth"`
}

type TrendSlice struct {
	Since     string          `json:"since"`
	Until     string          `json:"until"`
	ScanCount int             `json:"scan_count"`
	Points    []history.Point `json:"points"`
}
