package history

import (
	"fmt"
	"math"
	"strings"
)

// smellWeights scores each finding by type; unlisted types use defaultSmellWeight.
var smellWeights = map[string]float64{
	"cyclic_dependency": 6,
	"god_module":        8,
	"bottleneck":        6,
	"hub":               4,
}

const (
	defaultSmellWeight = 3

	maxDensityRisk = 30
	maxSmellRisk   = 40
	cycleBaseRisk  = 20
	maxCycleExtra  = 10
)

// RiskInput is the state a risk score is computed from.
type RiskInput struct {
	Modules      int
	Dependencies int
	Cycles       int
	SmellCounts  map[string]int
	Trend        Trend
}

// RiskScore combines dependency density (up to 30), cycle presence (20 plus 2
// per cycle, up to 30) and weighted smells (up to 40), then adjusts for the
// trend: +3 for growing complexity, +10 for growing smells, -5 for shrinking
// smells. The result is clamped to [0,100] and rounded to one decimal.
//
// Adding smells never lowers the score for a fixed graph.
func RiskScore(in RiskInput) float64 {
	score := 0.0

	if in.Modules > 0 {
		density := float64(in.Dependencies) / float64(in.Modules)
		score += math.Min(maxDensityRisk, density*10)
	}

	if in.Cycles > 0 {
		score += cycleBaseRisk + math.Min(maxCycleExtra, float64(in.Cycles)*2)
	}

	smellRisk := 0.0
	for typ, n := range in.SmellCounts {
		if n <= 0 {
			continue
		}
		w, ok := smellWeights[typ]
		if !ok {
			w = defaultSmellWeight
		}
		smellRisk += w * float64(n)
	}
	score += math.Min(maxSmellRisk, smellRisk)

	if in.Trend.Complexity == Increasing {
		score += 3
	}
	switch in.Trend.Smells {
	case Increasing:
		score += 10
	case Decreasing:
		score -= 5
	}

	score = math.Max(0, math.Min(100, score))
	return math.Round(score*10) / 10
}

// riskBar renders "[████░░░░░░] 40/100".
func riskBar(score float64) string {
	const width = 10
	filled := int(float64(width) * score / 100)
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s/100", bar, formatScore(score))
}

func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return fmt.Sprintf("%d", int(score))
	}
	return fmt.Sprintf("%.1f", score)
}
