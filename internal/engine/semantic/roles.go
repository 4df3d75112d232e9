// Package semantic assigns coarse architectural roles to modules and flags
// dependencies that point the wrong way between roles.
package semantic

import (
	"strings"

	domainErrors "archgraph/internal/core/errors"
	"archgraph/internal/engine/graph"
	"archgraph/internal/shared/util"

	"github.com/gobwas/glob"
)

type Role string

const (
	RoleOrchestration  Role = "orchestration"
	RoleAnalytics      Role = "analytics"
	RoleInfrastructure Role = "infrastructure"
	RoleTests          Role = "tests"
	RoleOther          Role = "other"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOrchestration, RoleAnalytics, RoleInfrastructure, RoleTests, RoleOther:
		return true
	}
	return false
}

// ModuleInfo pairs a node with its role.
type ModuleInfo struct {
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Override forces a role for every node matching Pattern. Patterns without
// wildcards match the path itself or anything below it.
type Override struct {
	Pattern string
	Role    Role
}

var (
	orchestrationKeys  = []string{"cli", "agent_core", "agent"}
	analyticsKeys      = []string{"architecture_", "project_graph", "graph_analysis", "code_awareness", "planner"}
	infrastructureKeys = []string{"memory", "history", "feedback", "self_map", "io", "observation"}
)

type compiledOverride struct {
	raw        string
	isWildcard bool
	glob       glob.Glob
	role       Role
}

// Classifier applies configured overrides first and the naming heuristic second.
// The zero value classifies by heuristic only.
type Classifier struct {
	overrides []compiledOverride
}

// NewClassifier compiles overrides in order; the first matching override wins.
func NewClassifier(overrides []Override) (*Classifier, error) {
	c := &Classifier{overrides: make([]compiledOverride, 0, len(overrides))}
	for _, o := range overrides {
		norm := util.NormalizePath(o.Pattern)
		if norm == "" {
			continue
		}
		role := Role(strings.ToLower(strings.TrimSpace(string(o.Role))))
		if !role.Valid() {
			return nil, domainErrors.AddContext(
				domainErrors.New(domainErrors.CodeValidationError, "unknown semantic role "+string(o.Role)),
				domainErrors.CtxKey, o.Pattern)
		}
		co := compiledOverride{
			raw:        norm,
			isWildcard: strings.ContainsAny(norm, "*?[]{}"),
			role:       role,
		}
		if co.isWildcard {
			g, err := glob.Compile(norm, '/')
			if err != nil {
				return nil, domainErrors.AddContext(
					domainErrors.Wrap(err, domainErrors.CodeValidationError, "invalid override pattern"),
					domainErrors.CtxKey, o.Pattern)
			}
			co.glob = g
		}
		c.overrides = append(c.overrides, co)
	}
	return c, nil
}

// Role returns the role of a single node name.
func (c *Classifier) Role(name string) Role {
	if c != nil {
		norm := util.NormalizePath(name)
		for _, o := range c.overrides {
			if o.isWildcard {
				if o.glob.Match(norm) {
					return o.role
				}
				continue
			}
			if util.HasPathPrefix(norm, o.raw) {
				return o.role
			}
		}
	}
	return InferRole(name)
}

// Classify assigns a role to every node of g.
func (c *Classifier) Classify(g *graph.Graph) map[string]Role {
	nodes := g.Nodes()
	roles := make(map[string]Role, len(nodes))
	for _, n := range nodes {
		roles[n] = c.Role(n)
	}
	return roles
}

// Classify assigns heuristic roles without overrides.
func Classify(g *graph.Graph) map[string]Role {
	var c *Classifier
	return c.Classify(g)
}

// Modules lists nodes with their roles in node order.
func Modules(g *graph.Graph, roles map[string]Role) []ModuleInfo {
	nodes := g.Nodes()
	out := make([]ModuleInfo, 0, len(nodes))
	for _, n := range nodes {
		r, ok := roles[n]
		if !ok {
			r = RoleOther
		}
		out = append(out, ModuleInfo{Name: n, Role: r})
	}
	return out
}

// InferRole is the ordered naming heuristic: tests, orchestration, analytics,
// infrastructure, then other. Matching is case-insensitive on the full path.
func InferRole(name string) Role {
	lower := strings.ToLower(util.NormalizePath(name))

	if strings.HasPrefix(lower, "tests/") || strings.HasPrefix(lower, "test_") || strings.Contains(lower, "/tests/") {
		return RoleTests
	}
	if containsAny(lower, orchestrationKeys) {
		return RoleOrchestration
	}
	if containsAny(lower, analyticsKeys) {
		return RoleAnalytics
	}
	if containsAny(lower, infrastructureKeys) {
		return RoleInfrastructure
	}
	return RoleOther
}

func containsAny(s string, keys []string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
