package history

import "time"

// SchemaVersion is the latest history database migration.
const SchemaVersion = 2

// Direction of a metric series over a window.
type Direction string

const (
	Increasing Direction = "increasing"
	Decreasing Direction = "decreasing"
	Stable     Direction = "stable"
	Unknown    Direction = "unknown"
)

// Maturity labels derived from trends and cycle presence.
const (
	MaturityHigh             = "high"
	MaturityMedium           = "medium"
	MaturityMediumLow        = "medium-low"
	MaturityLow              = "low"
	MaturityInsufficientData = "insufficient_data"
)

// Point is one persisted analysis snapshot. Seq is assigned by the store and
// strictly increases with every append.
type Point struct {
	Seq          int64          `json:"seq"`
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id,omitempty"`
	Modules      int            `json:"modules"`
	Dependencies int            `json:"dependencies"`
	Cycles       int            `json:"cycles"`
	MaxDegree    int            `json:"max_degree"`
	TotalSmells  int            `json:"total_smells"`
	SmellCounts  map[string]int `json:"smell_counts"`
	Maturity     string         `json:"maturity"`
	Version      string         `json:"version"`
	GitCommit    string         `json:"git_commit,omitempty"`
	RiskScore    float64        `json:"risk_score"`
}

// Trend is the direction of each tracked series across a window.
type Trend struct {
	Complexity     Direction `json:"complexity"`
	Smells         Direction `json:"smells"`
	Centralization Direction `json:"centralization"`
}

// Export is the JSON document written by ExportJSON.
type Export struct {
	SchemaVersion int     `json:"schema_version"`
	History       []Point `json:"history"`
}

// windowOf returns the last n points; non-positive or oversized n means all.
func windowOf(points []Point, n int) []Point {
	if n <= 0 || n >= len(points) {
		return points
	}
	return points[len(points)-n:]
}
