package filter

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// Evaluator evaluates an event against a parsed Filter, used by
// filter.Processor to decide whether to pass or drop an event.
type Evaluator struct {
	filter *Filter
}

// NewEvaluator builds an Evaluator over filter.
func NewEvaluator(filter *Filter) (*Evaluator, error) {
	if filter == nil {
		return nil, fmt.Errorf("filter is nil")
	}
	return &Evaluator{filter: filter}, nil
}

// Evaluate reports whether data matches the Evaluator's filter. A filter
// with neither a structured Root nor a string Expression always matches.
func (e *Evaluator) Evaluate(data map[string]any) (bool, error) {
	if e.filter.Root != nil {
		return e.evaluateNode(e.filter.Root, data)
	}

	if e.filter.Expression != "" {
		return e.evaluateExpression(e.filter.Expression, data)
	}

	return true, nil
}

func (e *Evaluator) evaluateNode(node *FilterNode, data map[string]any) (bool, error) {
	switch node.Type {
	case "condition":
		return e.evaluateCondition(node.Condition, data)
	case "group":
		return e.evaluateGroup(node.Group, data)
	default:
		return false, fmt.Errorf("unknown node type: %s", node.Type)
	}
}

func (e *Evaluator) evaluateGroup(group *ConditionGroup, data map[string]any) (bool, error) {
	if len(group.Conditions) == 0 {
		return true, nil
	}

	switch group.Operator {
	case LogicalAnd:
		for _, cond := range group.Conditions {
			result, err := e.evaluateNode(&cond, data)
			if err != nil {
				return false, err
			}
			if !result {
				return false, nil
			}
		}
		return true, nil

	case LogicalOr:
		for _, cond := range group.Conditions {
			result, err := e.evaluateNode(&cond, data)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown logical operator: %s", group.Operator)
	}
}

func (e *Evaluator) evaluateCondition(cond *Condition, data map[string]any) (bool, error) {
	fieldValue, exists := getNestedValue(data, cond.Field)

	switch cond.Op {
	case OpExists:
		return exists, nil
	case OpNotExists:
		return !exists, nil
	case OpIsNull:
		return !exists || fieldValue == nil, nil
	case OpIsNotNull:
		return exists && fieldValue != nil, nil
	}

	if !exists {
		return false, nil
	}

	return e.compare(fieldValue, cond.Op, cond.Value)
}

func (e *Evaluator) compare(fieldValue any, op Operator, compareValue any) (bool, error) {
	switch op {
	case OpEqual:
		return equals(fieldValue, compareValue), nil

	case OpNotEqual:
		return !equals(fieldValue, compareValue), nil

	case OpGreaterThan:
		result, err := compareNumbers(fieldValue, compareValue)
		return result > 0, err

	case OpGreaterOrEqual:
		result, err := compareNumbers(fieldValue, compareValue)
		return result >= 0, err

	case OpLessThan:
		result, err := compareNumbers(fieldValue, compareValue)
		return result < 0, err

	case OpLessOrEqual:
		result, err := compareNumbers(fieldValue, compareValue)
		return result <= 0, err

	case OpContains:
		return strings.Contains(toString(fieldValue), toString(compareValue)), nil

	case OpStartsWith:
		return strings.HasPrefix(toString(fieldValue), toString(compareValue)), nil

	case OpEndsWith:
		return strings.HasSuffix(toString(fieldValue), toString(compareValue)), nil

	case OpRegex:
		re, err := regexp.Compile(toString(compareValue))
		if err != nil {
			return false, fmt.Errorf("invalid regular expression: %w", err)
		}
		return re.MatchString(toString(fieldValue)), nil

	case OpIn:
		return inArray(fieldValue, compareValue), nil

	case OpNotIn:
		return !inArray(fieldValue, compareValue), nil

	default:
		return false, fmt.Errorf("unsupported operator: %s", op)
	}
}

// evaluateExpression evaluates a raw string expression directly, without
// going through Converter/FilterNode first — kept for filters built with
// only Filter.Expression set rather than a parsed Root.
func (e *Evaluator) evaluateExpression(expr string, data map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)

	if strings.Contains(expr, "&&") {
		parts := strings.Split(expr, "&&")
		for _, part := range parts {
			result, err := e.evaluateExpression(strings.TrimSpace(part), data)
			if err != nil {
				return false, err
			}
			if !result {
				return false, nil
			}
		}
		return true, nil
	}

	if strings.Contains(expr, "||") {
		parts := strings.Split(expr, "||")
		for _, part := range parts {
			result, err := e.evaluateExpression(strings.TrimSpace(part), data)
			if err != nil {
				return false, err
			}
			if result {
				return true, nil
			}
		}
		return false, nil
	}

	return e.evaluateSingleExpression(expr, data)
}

func (e *Evaluator) evaluateSingleExpression(expr string, data map[string]any) (bool, error) {
	expr = strings.TrimSpace(expr)

	if strings.HasSuffix(expr, " exists") {
		field := strings.TrimSuffix(expr, " exists")
		field = strings.TrimPrefix(strings.TrimSpace(field), ".")
		_, exists := getNestedValue(data, field)
		return exists, nil
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
		if strings.Contains(expr, opDef.symbol) {
			parts := strings.SplitN(expr, opDef.symbol, 2)
			if len(parts) == 2 {
				field := strings.TrimPrefix(strings.TrimSpace(parts[0]), ".")
				value := strings.Trim(strings.TrimSpace(parts[1]), "'\"")

				fieldValue, exists := getNestedValue(data, field)
				if !exists {
					return false, nil
				}

				return e.compare(fieldValue, opDef.op, value)
			}
		}
	}

	return false, fmt.Errorf("cannot parse expression: %s", expr)
}

// getNestedValue resolves a dotted field path (e.g. "user.profile.name")
// against data.
func getNestedValue(data map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var current any = data

	for _, part := range parts {
		if part == "" {
			continue
		}

		switch v := current.(type) {
		case map[string]any:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}

	return current, true
}

// equals compares a and b, falling back to string comparison when their
// dynamic types differ.
func equals(a, b any) bool {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return toString(a) == toString(b)
	}
	return reflect.DeepEqual(a, b)
}

// compareNumbers compares a and b numerically, falling back to string
// comparison when either isn't coercible to float64. Returns -1, 0, or 1.
func compareNumbers(a, b any) (int, error) {
	aFloat, aOk := toFloat64(a)
	bFloat, bOk := toFloat64(b)

	if !aOk || !bOk {
		aStr := toString(a)
		bStr := toString(b)
		if aStr < bStr {
			return -1, nil
		} else if aStr > bStr {
			return 1, nil
		}
		return 0, nil
	}

	if aFloat < bFloat {
		return -1, nil
	} else if aFloat > bFloat {
		return 1, nil
	}
	return 0, nil
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		var f float64
		_, err := fmt.Sscanf(n, "%f", &f)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// inArray reports whether arr ([]any or []string) contains value.
func inArray(value any, arr any) bool {
	switch a := arr.(type) {
	case []any:
		for _, item := range a {
			if equals(value, item) {
				return true
			}
		}
	case []string:
		strVal := toString(value)
		for _, item := range a {
			if strVal == item {
				return true
			}
		}
	}
	return false
}
