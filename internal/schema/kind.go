package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the value type of a simple field, or KindComplex for nested types.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindFloat
	KindBool
	KindTime
	KindComplex
)

var kindNames = map[Kind]string{
	KindString:  "string",
	KindInt:     "int",
	KindLong:    "long",
	KindFloat:   "float",
	KindBool:    "boolean",
	KindTime:    "time",
	KindComplex: "complex",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a declared type name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "string", "text":
		return KindString, nil
	case "int", "integer", "int32":
		return KindInt, nil
	case "long", "int64", "bigint":
		return KindLong, nil
	case "float", "double", "decimal", "number":
		return KindFloat, nil
	case "bool", "boolean":
		return KindBool, nil
	case "time", "timestamp", "datetime", "date":
		return KindTime, nil
	}
	return KindString, fmt.Errorf("unknown field type: %q", s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time: %q", s)
}

// Parse converts a textual value, typically a query parameter, into the Go value of the kind.
func (k Kind) Parse(s string) (any, error) {
	switch k {
	case KindString:
		return s, nil
	case KindInt:
		return strconv.Atoi(s)
	case KindLong:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	case KindBool:
		return strconv.ParseBool(s)
	case KindTime:
		return parseTime(s)
	}
	return nil, fmt.Errorf("cannot parse %s value from text", k)
}

// Convert normalizes a value returned by a database driver to the Go type of the kind.
// Values that cannot be converted are returned unchanged.
func (k Kind) Convert(v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}
	switch k {
	case KindInt:
		switch x := v.(type) {
		case int64:
			return int(x)
		case float64:
			return int(x)
		case string:
			if n, err := strconv.Atoi(x); err == nil {
				return n
			}
		}
	case KindLong:
		switch x := v.(type) {
		case int:
			return int64(x)
		case int32:
			return int64(x)
		case float64:
			return int64(x)
		case string:
			if n, err := strconv.ParseInt(x, 10, 64); err == nil {
				return n
			}
		}
	case KindFloat:
		switch x := v.(type) {
		case int64:
			return float64(x)
		case int:
			return float64(x)
		case float32:
			return float64(x)
		case string:
			if f, err := strconv.ParseFloat(x, 64); err == nil {
				return f
			}
		}
	case KindBool:
		switch x := v.(type) {
		case int64:
			return x != 0
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b
			}
		}
	case KindTime:
		if s, ok := v.(string); ok {
			if t, err := parseTime(s); err == nil {
				return t
			}
		}
	}
	return v
}
