package scenario

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID identifies a scenario on the engine. The zero ID means "no scenario".
type ID int64

func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether id is unset.
func (id ID) IsZero() bool { return id == 0 }

// Identifier is implemented by values that carry a scenario ID, such as a
// SavedScenario record.
type Identifier interface {
	ScenarioID() ID
}

// ParseID normalizes a candidate scenario identifier. It accepts integers,
// numeric strings, json.Number, integral floats, maps holding an "id" field
// and Identifier values. Empty candidates (nil, "", 0) yield the zero ID
// and no error.
func ParseID(candidate any) (ID, error) {
	switch v := candidate.(type) {
	case nil:
		return 0, nil
	case ID:
		return checkID(int64(v), candidate)
	case Identifier:
		return checkID(int64(v.ScenarioID()), candidate)
	case int:
		return checkID(int64(v), candidate)
	case int32:
		return checkID(int64(v), candidate)
	case int64:
		return checkID(v, candidate)
	case uint:
		return checkID(int64(v), candidate)
	case uint32:
		return checkID(int64(v), candidate)
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("scenario: id %d out of range", v)
		}
		return checkID(int64(v), candidate)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("scenario: id %v is not an integer", v)
		}
		if v < 0 || v >= 1<<63 {
			return 0, fmt.Errorf("scenario: id %v out of range", v)
		}
		return checkID(int64(v), candidate)
	case json.Number:
		return ParseID(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("scenario: id %q is not numeric: %w", v, err)
		}
		return checkID(n, candidate)
	case map[string]any:
		inner, ok := v["id"]
		if !ok {
			return 0, fmt.Errorf("scenario: mapping has no \"id\" field")
		}
		return ParseID(inner)
	default:
		return 0, fmt.Errorf("scenario: cannot use %T as a scenario id", candidate)
	}
}

func checkID(n int64, candidate any) (ID, error) {
	if n < 0 {
		return 0, fmt.Errorf("scenario: id %v is negative", candidate)
	}
	return ID(n), nil
}
