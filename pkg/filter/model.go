// Package filter implements the condition-expression engine behind the
// "filter" processor: a Filter tree (Condition/ConditionGroup/FilterNode)
// parsed from a config string via Converter and walked by Evaluator
// against each event.
package filter

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Operator is a leaf condition's comparison operator.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpNotEqual       Operator = "neq"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpContains       Operator = "contains"
	OpStartsWith     Operator = "startswith"
	OpEndsWith       Operator = "endswith"
	OpRegex          Operator = "regex"
	OpExists         Operator = "exists"
	OpNotExists      Operator = "notexists"
	OpIn             Operator = "in"
	OpNotIn          Operator = "notin"
	OpIsNull         Operator = "null"
	OpIsNotNull      Operator = "notnull"
)

// LogicalOperator joins sibling conditions within a ConditionGroup.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// Condition is a single leaf test: a field path, an operator, and the
// comparison value the operator needs (if any).
type Condition struct {
	ID    string   `json:"id,omitempty" yaml:"id,omitempty"`
	Field string   `json:"field" yaml:"field"`
	Op    Operator `json:"op" yaml:"op"`
	Value any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// ConditionGroup joins a list of FilterNodes under and/or.
type ConditionGroup struct {
	ID         string          `json:"id,omitempty" yaml:"id,omitempty"`
	Operator   LogicalOperator `json:"operator" yaml:"operator"`
	Conditions []FilterNode    `json:"conditions" yaml:"conditions"`
}

// FilterNode is either a single Condition or a ConditionGroup, tagged by
// Type.
type FilterNode struct {
	Type      string          `json:"type" yaml:"type"`
	Condition *Condition      `json:"condition,omitempty" yaml:"condition,omitempty"`
	Group     *ConditionGroup `json:"group,omitempty" yaml:"group,omitempty"`
}

// Filter is a parsed filter condition, either a structured tree (Root)
// or, for filters that were never parsed into one, the raw Expression
// string.
type Filter struct {
	// Version is reserved for a future structured-filter migration.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	Root *FilterNode `json:"root,omitempty" yaml:"root,omitempty"`

	// Expression holds the original string form when Root hasn't been
	// parsed (or for a filter that only ever had a string form).
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// FilterConfig unmarshals a YAML/JSON config value that may be either a
// bare condition-expression string or a structured Filter object.
type FilterConfig struct {
	filter *Filter
	raw    string
}

// UnmarshalYAML accepts either a scalar expression string or a
// structured Filter object.
func (fc *FilterConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		fc.raw = node.Value
		fc.filter = &Filter{
			Expression: node.Value,
		}
		return nil
	}

	var filter Filter
	if err := node.Decode(&filter); err != nil {
		return err
	}
	fc.filter = &filter
	return nil
}

// MarshalYAML renders a plain-expression filter back to a scalar string;
// anything with a structured Root marshals as the full Filter object.
func (fc FilterConfig) MarshalYAML() (interface{}, error) {
	if fc.filter != nil && fc.filter.Root == nil && fc.filter.Expression != "" {
		return fc.filter.Expression, nil
	}
	return fc.filter, nil
}

// UnmarshalJSON accepts either a bare expression string or a structured
// Filter object.
func (fc *FilterConfig) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		fc.raw = str
		fc.filter = &Filter{
			Expression: str,
		}
		return nil
	}

	var filter Filter
	if err := json.Unmarshal(data, &filter); err != nil {
		return err
	}
	fc.filter = &filter
	return nil
}

// MarshalJSON always renders the structured Filter object, for
// consumers (e.g. a config-authoring UI) that expect a stable shape
// rather than the string/object union UnmarshalJSON accepts.
func (fc FilterConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(fc.filter)
}

// GetFilter returns the parsed Filter.
func (fc *FilterConfig) GetFilter() *Filter {
	return fc.filter
}

// IsStructured reports whether the config held a structured Filter
// (Root set) rather than a plain expression string.
func (fc *FilterConfig) IsStructured() bool {
	return fc.filter != nil && fc.filter.Root != nil
}

// GetExpression returns the filter's string expression form, if any.
func (fc *FilterConfig) GetExpression() string {
	if fc.filter != nil {
		return fc.filter.Expression
	}
	return fc.raw
}

// NewCondition builds a FilterNode wrapping a single leaf Condition.
func NewCondition(field string, op Operator, value any) *FilterNode {
	return &FilterNode{
		Type: "condition",
		Condition: &Condition{
			Field: field,
			Op:    op,
			Value: value,
		},
	}
}

// NewGroup builds a FilterNode wrapping a ConditionGroup over conditions.
func NewGroup(op LogicalOperator, conditions ...*FilterNode) *FilterNode {
	nodes := make([]FilterNode, len(conditions))
	for i, c := range conditions {
		nodes[i] = *c
	}
	return &FilterNode{
		Type: "group",
		Group: &ConditionGroup{
			Operator:   op,
			Conditions: nodes,
		},
	}
}

// And is a NewGroup(LogicalAnd, ...) convenience helper.
func And(conditions ...*FilterNode) *FilterNode {
	return NewGroup(LogicalAnd, conditions...)
}

// Or is a NewGroup(LogicalOr, ...) convenience helper.
func Or(conditions ...*FilterNode) *FilterNode {
	return NewGroup(LogicalOr, conditions...)
}

// Validate checks that exactly one of Expression/Root is set, and, for a
// structured filter, recurses into Root.
func (f *Filter) Validate() error {
	if f.Expression != "" && f.Root != nil {
		return fmt.Errorf("expression and root cannot both be set")
	}
	if f.Expression == "" && f.Root == nil {
		return fmt.Errorf("one of expression or root is required")
	}
	if f.Root != nil {
		return f.Root.Validate()
	}
	return nil
}

// Validate checks that n carries the Condition/Group object its Type
// names, and recurses into it.
func (n *FilterNode) Validate() error {
	switch n.Type {
	case "condition":
		if n.Condition == nil {
			return fmt.Errorf("node type is condition but no condition is set")
		}
		return n.Condition.Validate()
	case "group":
		if n.Group == nil {
			return fmt.Errorf("node type is group but no group is set")
		}
		return n.Group.Validate()
	default:
		return fmt.Errorf("unknown node type: %s", n.Type)
	}
}

// Validate checks that c has a field, an operator, and (unless the
// operator is one of the no-value ones like exists/null) a value.
func (c *Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("field is required")
	}
	if c.Op == "" {
		return fmt.Errorf("operator is required")
	}

	noValueOps := map[Operator]bool{
		OpExists:    true,
		OpNotExists: true,
		OpIsNull:    true,
		OpIsNotNull: true,
	}

	if !noValueOps[c.Op] && c.Value == nil {
		return fmt.Errorf("operator %s requires a value", c.Op)
	}

	return nil
}

// Validate checks that g has a recognized logical operator and at least
// one condition, and recurses into each.
func (g *ConditionGroup) Validate() error {
	if g.Operator != LogicalAnd && g.Operator != LogicalOr {
		return fmt.Errorf("invalid logical operator: %s", g.Operator)
	}
	if len(g.Conditions) == 0 {
		return fmt.Errorf("group requires at least one condition")
	}
	for i, cond := range g.Conditions {
		if err := cond.Validate(); err != nil {
			return fmt.Errorf("condition[%d]: %w", i, err)
		}
	}
	return nil
}
