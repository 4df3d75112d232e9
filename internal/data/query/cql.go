package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	cqlSelectRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+modules(?:\s+WHERE\s+(.+))?\s*$`)
	cqlAndSplitRE     = regexp.MustCompile(`(?i)\s+AND\s+`)
	cqlNumericCondRE  = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(>=|<=|!=|=|>|<)\s*(-?[0-9]+)\s*$`)
	cqlContainsCondRE = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s+CONTAINS\s+['"]([^'"]+)['"]\s*$`)
	cqlStringCondRE   = regexp.MustCompile(`(?i)^\s*([a-z_]+)\s*(=|!=)\s*['"]([^'"]+)['"]\s*$`)
)

// Numeric fields: fan_in, fan_out, degree, layer. String fields: name, role.
type CQLQuery struct {
	Target     string
	Conditions []CQLCondition
}

type CQLCondition struct {
	Field  string
	Op     string
	IntVal int
	StrVal string
	IsInt  bool
	IsStr  bool
}

func ParseCQL(raw string) (CQLQuery, error) {
	matches := cqlSelectRE.FindStringSubmatch(strings.TrimSpace(raw))
	if len(matches) == 0 {
		return CQLQuery{}, fmt.Errorf("invalid CQL query: expected SELECT modules [WHERE ...]")
	}

	query := CQLQuery{Target: "modules"}
	where := strings.TrimSpace(matches[1])
	if where == "" {
		return query, nil
	}

	parts := cqlAndSplitRE.Split(where, -1)
	query.Conditions = make([]CQLCondition, 0, len(parts))
	for _, part := range parts {
		condition, err := parseCQLCondition(part)
		if err != nil {
			return CQLQuery{}, err
		}
		query.Conditions = append(query.Conditions, condition)
	}
	return query, nil
}

func parseCQLCondition(raw string) (CQLCondition, error) {
	if match := cqlNumericCondRE.FindStringSubmatch(raw); len(match) == 4 {
		value, err := strconv.Atoi(strings.TrimSpace(match[3]))
		if err != nil {
			return CQLCondition{}, fmt.Errorf("invalid numeric value %q: %w", match[3], err)
		}
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			IntVal: value,
			IsInt:  true,
		}, nil
	}

	if match := cqlContainsCondRE.FindStringSubmatch(raw); len(match) == 3 {
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     "contains",
			StrVal: strings.TrimSpace(match[2]),
			IsStr:  true,
		}, nil
	}

	if match := cqlStringCondRE.FindStringSubmatch(raw); len(match) == 4 {
		return CQLCondition{
			Field:  strings.ToLower(strings.TrimSpace(match[1])),
			Op:     strings.TrimSpace(match[2]),
			StrVal: strings.TrimSpace(match[3]),
			IsStr:  true,
		}, nil
	}

	return CQLCondition{}, fmt.Errorf("invalid CQL condition %q", strings.TrimSpace(raw))
}

// Match reports whether row satisfies every condition.
func (q CQLQuery) Match(row ModuleSummary) (bool, error) {
	for _, c := range q.Conditions {
		ok, err := c.match(row)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c CQLCondition) match(row ModuleSummary) (bool, error) {
	if c.IsInt {
		var v int
		switch c.Field {
		case "fan_in":
			v = row.ReverseDependencyCount
		case "fan_out":
			v = row.DependencyCount
		case "degree":
			v = row.ReverseDependencyCount + row.DependencyCount
		case "layer":
			v = row.Layer
		default:
			return false, fmt.Errorf("unknown numeric field %q", c.Field)
		}
		switch c.Op {
		case "=":
			return v == c.IntVal, nil
		case "!=":
			return v != c.IntVal, nil
		case ">":
			return v > c.IntVal, nil
		case ">=":
			return v >= c.IntVal, nil
		case "<":
			return v < c.IntVal, nil
		case "<=":
			return v <= c.IntVal, nil
		}
		return false, fmt.Errorf("unsupported operator %q", c.Op)
	}

	var v string
	switch c.Field {
	case "name":
		v = row.Name
	case "role":
		v = string(row.Role)
	default:
		return false, fmt.Errorf("unknown string field %q", c.Field)
	}
	switch c.Op {
	case "contains":
		return strings.Contains(strings.ToLower(v), strings.ToLower(c.StrVal)), nil
	case "=":
		return strings.EqualFold(v, c.StrVal), nil
	case "!=":
		return !strings.EqualFold(v, c.StrVal), nil
	}
	return false, fmt.Errorf("unsupported operator %q", c.Op)
}
