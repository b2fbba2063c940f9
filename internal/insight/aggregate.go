package insight

import (
	"fmt"
	"strings"
)

// Aggregate is the function applied to a result field.
type Aggregate int

const (
	None Aggregate = iota
	GroupBy
	Count
	Sum
	Avg
	Min
	Max
)

var aggregateNames = [...]string{"", "group_by", "count", "sum", "avg", "min", "max"}

func (a Aggregate) String() string {
	if a >= 0 && int(a) < len(aggregateNames) {
		return aggregateNames[a]
	}
	return fmt.Sprintf("aggregate(%d)", int(a))
}

// Calculated reports whether the engine applies a function to the field, as opposed to
// grouping on it.
func (a Aggregate) Calculated() bool {
	return a != None && a != GroupBy
}

func ParseAggregate(s string) (Aggregate, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "group_by", "group by", "groupby":
		return GroupBy, nil
	case "count":
		return Count, nil
	case "sum":
		return Sum, nil
	case "avg", "average":
		return Avg, nil
	case "min":
		return Min, nil
	case "max":
		return Max, nil
	}
	return None, fmt.Errorf("unknown aggregate %q", s)
}
