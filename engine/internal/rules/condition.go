package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iotwatch/iotwatch/pkg/telemetry"
)

// Condition is a single numeric comparison against one event field.
//
// Supported expressions (field operator value):
//
//	field_a > 5
//	field_a >= 5.5
//	temperature < -10
//	timestamp != 0
//
// The field is field_a, timestamp, device_id or any numeric pass-through key.
type Condition struct {
	Field     string
	Op        string
	Threshold float64
}

// ParseCondition parses "field op value".
func ParseCondition(expr string) (Condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("condition %q: want \"<field> <op> <number>\"", expr)
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch op {
	case ">", ">=", "<", "<=", "==", "!=":
	default:
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, op)
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: threshold: %w", expr, err)
	}
	return Condition{Field: field, Op: op, Threshold: threshold}, nil
}

// String renders the condition the way it is written in configuration; it
// doubles as the default rule label.
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %s", c.Field, c.Op, strconv.FormatFloat(c.Threshold, 'f', -1, 64))
}

// Holds reports whether ev satisfies the condition, along with the field
// value it compared. It returns ErrMissingField when ev has no numeric value
// for the field.
func (c Condition) Holds(ev telemetry.Event) (bool, float64, error) {
	v, ok := ev.Field(c.Field)
	if !ok {
		return false, 0, fmt.Errorf("%w: %s", ErrMissingField, c.Field)
	}
	return compareFloat(v, c.Op, c.Threshold), v, nil
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
