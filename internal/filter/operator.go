package filter

import "strings"

// Operator is a comparison applied by a filter clause. Raw stands for operator text
// that is not recognized, like "> current_timestamp", and is passed to the engine as is.
type Operator int

const (
	Raw Operator = iota
	Eq
	Neq
	Gt
	Lt
	Gte
	Lte
	Like
	ILike
	IsNull
	IsNotNull
)

var operatorText = map[Operator]string{
	Eq:        "=",
	Neq:       "<>",
	Gt:        ">",
	Lt:        "<",
	Gte:       ">=",
	Lte:       "<=",
	Like:      "like",
	ILike:     "ilike",
	IsNull:    "is null",
	IsNotNull: "is not null",
}

// ParseOperator maps configured operator text to an Operator. Anything unrecognized is Raw.
func ParseOperator(s string) Operator {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "!=" {
		return Neq
	}
	for op, text := range operatorText {
		if text == s {
			return op
		}
	}
	return Raw
}

func (o Operator) String() string {
	if s, ok := operatorText[o]; ok {
		return s
	}
	return "raw"
}

// Toggle reports whether an input for the operator is a boolean switching the clause on,
// rather than a value to compare with.
func (o Operator) Toggle() bool {
	return o == IsNull || o == IsNotNull || o == Raw
}

// ListCapable reports whether the operator accepts several values, matching any of them.
func (o Operator) ListCapable() bool {
	return o == Eq || o == Neq
}
