package filter

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Converter translates between a filter condition's string expression
// form (e.g. `.status == 'active' && .amount > 100`) and its structured
// Filter tree, so `NewProcessor` can parse a config option once and the
// evaluator can walk a tree instead of re-parsing on every event.
type Converter struct{}

// NewConverter returns a Converter.
func NewConverter() *Converter {
	return &Converter{}
}

// ExpressionToStructured parses expr into a Filter.
func (c *Converter) ExpressionToStructured(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty filter expression")
	}

	root, err := c.parseExpression(expr)
	if err != nil {
		return nil, err
	}

	return &Filter{
		Version: "1",
		Root:    root,
	}, nil
}

// StructuredToExpression renders filter back to its string expression
// form, the inverse of ExpressionToStructured.
func (c *Converter) StructuredToExpression(filter *Filter) (string, error) {
	if filter == nil {
		return "", fmt.Errorf("filter is nil")
	}

	if filter.Expression != "" {
		return filter.Expression, nil
	}

	if filter.Root == nil {
		return "", fmt.Errorf("filter has no root node")
	}

	return c.nodeToExpression(filter.Root)
}

// parseExpression parses expr into a FilterNode, splitting on `||` (lowest
// precedence) then `&&` before falling through to a single condition.
func (c *Converter) parseExpression(expr string) (*FilterNode, error) {
	expr = strings.TrimSpace(expr)

	// Split on OR first: lowest precedence.
	if strings.Contains(expr, "||") {
		parts := splitLogical(expr, "||")
		if len(parts) > 1 {
			return c.parseLogicalGroup(parts, LogicalOr)
		}
	}

	// Then AND.
	if strings.Contains(expr, "&&") {
		parts := splitLogical(expr, "&&")
		if len(parts) > 1 {
			return c.parseLogicalGroup(parts, LogicalAnd)
		}
	}

	// Single condition.
	return c.parseSingleCondition(expr)
}

// parseLogicalGroup parses each of parts as its own expression and joins
// them under a ConditionGroup with operator op.
func (c *Converter) parseLogicalGroup(parts []string, op LogicalOperator) (*FilterNode, error) {
	conditions := make([]FilterNode, 0, len(parts))

	for _, part := range parts {
		node, err := c.parseExpression(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, *node)
	}

	return &FilterNode{
		Type: "group",
		Group: &ConditionGroup{
			ID:         generateID(),
			Operator:   op,
			Conditions: conditions,
		},
	}, nil
}

// parseSingleCondition parses a single leaf condition: `field exists` or
// `field <op> value` for one of the recognized comparison operators.
func (c *Converter) parseSingleCondition(expr string) (*FilterNode, error) {
	expr = strings.TrimSpace(expr)

	// Strip a fully-enclosing parenthesis pair.
	if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		return c.parseExpression(expr[1 : len(expr)-1])
	}

	// `field exists`.
	if strings.HasSuffix(expr, " exists") {
		field := strings.TrimSuffix(expr, " exists")
		field = strings.TrimPrefix(strings.TrimSpace(field), ".")
		return &FilterNode{
			Type: "condition",
			Condition: &Condition{
				ID:    generateID(),
				Field: field,
				Op:    OpExists,
			},
		}, nil
	}

	operators := []struct {
		symbol string
		op     Operator
	}{
		{"~=", OpRegex},
		{"!=", OpNotEqual},
		{">=", OpGreaterOrEqual},
		{"<=", OpLessOrEqual},
		{"==", OpEqual},
		{">", OpGreaterThan},
		{"<", OpLessThan},
	}

	for _, opDef := range operators {
		if idx := strings.Index(expr, opDef.symbol); idx > 0 {
			field := strings.TrimPrefix(strings.TrimSpace(expr[:idx]), ".")
			value := strings.Trim(strings.TrimSpace(expr[idx+len(opDef.symbol):]), "'\"")

			return &FilterNode{
				Type: "condition",
				Condition: &Condition{
					ID:    generateID(),
					Field: field,
					Op:    opDef.op,
					Value: value,
				},
			}, nil
		}
	}

	return nil, fmt.Errorf("cannot parse condition: %s", expr)
}

// nodeToExpression renders node back to its string expression form.
func (c *Converter) nodeToExpression(node *FilterNode) (string, error) {
	switch node.Type {
	case "condition":
		return c.conditionToExpression(node.Condition)
	case "group":
		return c.groupToExpression(node.Group)
	default:
		return "", fmt.Errorf("unknown node type: %s", node.Type)
	}
}

// conditionToExpression renders a single Condition back to its string
// expression form.
func (c *Converter) conditionToExpression(cond *Condition) (string, error) {
	field := "." + cond.Field

	switch cond.Op {
	case OpExists:
		return fmt.Sprintf("%s exists", field), nil
	case OpNotExists:
		return fmt.Sprintf("!(%s exists)", field), nil
	case OpIsNull:
		return fmt.Sprintf("%s == null", field), nil
	case OpIsNotNull:
		return fmt.Sprintf("%s != null", field), nil
	case OpEqual:
		return fmt.Sprintf("%s == '%v'", field, cond.Value), nil
	case OpNotEqual:
		return fmt.Sprintf("%s != '%v'", field, cond.Value), nil
	case OpGreaterThan:
		return fmt.Sprintf("%s > %v", field, cond.Value), nil
	case OpGreaterOrEqual:
		return fmt.Sprintf("%s >= %v", field, cond.Value), nil
	case OpLessThan:
		return fmt.Sprintf("%s < %v", field, cond.Value), nil
	case OpLessOrEqual:
		return fmt.Sprintf("%s <= %v", field, cond.Value), nil
	case OpContains:
		return fmt.Sprintf("%s contains '%v'", field, cond.Value), nil
	case OpStartsWith:
		return fmt.Sprintf("%s startswith '%v'", field, cond.Value), nil
	case OpEndsWith:
		return fmt.Sprintf("%s endswith '%v'", field, cond.Value), nil
	case OpRegex:
		return fmt.Sprintf("%s ~= '%v'", field, cond.Value), nil
	case OpIn:
		return fmt.Sprintf("%s in %v", field, cond.Value), nil
	case OpNotIn:
		return fmt.Sprintf("%s notin %v", field, cond.Value), nil
	default:
		return "", fmt.Errorf("unsupported operator: %s", cond.Op)
	}
}

// groupToExpression renders a ConditionGroup back to its string
// expression form, parenthesizing a nested group whose operator differs
// from its parent's.
func (c *Converter) groupToExpression(group *ConditionGroup) (string, error) {
	if len(group.Conditions) == 0 {
		return "", nil
	}

	if len(group.Conditions) == 1 {
		return c.nodeToExpression(&group.Conditions[0])
	}

	var separator string
	switch group.Operator {
	case LogicalAnd:
		separator = " && "
	case LogicalOr:
		separator = " || "
	default:
		return "", fmt.Errorf("unknown logical operator: %s", group.Operator)
	}

	parts := make([]string, len(group.Conditions))
	for i, cond := range group.Conditions {
		expr, err := c.nodeToExpression(&cond)
		if err != nil {
			return "", err
		}
		if cond.Type == "group" && cond.Group.Operator != group.Operator {
			expr = "(" + expr + ")"
		}
		parts[i] = expr
	}

	return strings.Join(parts, separator), nil
}

// splitLogical splits expr on every top-level (paren-depth-0) occurrence
// of sep, so a parenthesized sub-expression's own `&&`/`||` isn't split.
func splitLogical(expr string, sep string) []string {
	var parts []string
	var current strings.Builder
	depth := 0

	for i := 0; i < len(expr); i++ {
		ch := expr[i]

		if ch == '(' {
			depth++
			current.WriteByte(ch)
		} else if ch == ')' {
			depth--
			current.WriteByte(ch)
		} else if depth == 0 && i+len(sep) <= len(expr) && expr[i:i+len(sep)] == sep {
			parts = append(parts, current.String())
			current.Reset()
			i += len(sep) - 1
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// generateID returns a short random id for a parsed Condition/
// ConditionGroup node.
func generateID() string {
	return uuid.New().String()[:8]
}
