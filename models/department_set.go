package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DepartmentSet is an ordered set of department ids. It is persisted as a
// comma separated list ("3,4") and exposed over JSON the same way, while also
// accepting a JSON array on input.
type DepartmentSet []uint

// ParseDepartmentSet parses a comma separated list of department ids. Empty
// tokens are skipped; any token that is not a positive integer fails the
// whole list.
func ParseDepartmentSet(s string) (DepartmentSet, error) {
	var set DepartmentSet
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.ParseUint(tok, 10, 32)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid department id %q", tok)
		}
		set = set.With(uint(id))
	}
	return set, nil
}

// With returns the set with id added, keeping first-seen order.
func (s DepartmentSet) With(id uint) DepartmentSet {
	if s.Contains(id) {
		return s
	}
	return append(s, id)
}

func (s DepartmentSet) Contains(id uint) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

func (s DepartmentSet) IDs() []uint {
	return append([]uint(nil), s...)
}

func (s DepartmentSet) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

// Sorted returns a copy in ascending order.
func (s DepartmentSet) Sorted() DepartmentSet {
	out := s.IDs()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (DepartmentSet) GormDataType() string {
	return "text"
}

// Value stores an empty set as NULL.
func (s DepartmentSet) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return s.String(), nil
}

// Scan is lenient: a stored list containing an unparseable token yields an
// empty set so callers fall back to the primary target department.
func (s *DepartmentSet) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into DepartmentSet", value)
	}
	set, err := ParseDepartmentSet(raw)
	if err != nil {
		*s = nil
		return nil
	}
	*s = set
	return nil
}

func (s DepartmentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts "3,4", [3,4] or null. Unlike Scan it rejects bad input.
func (s *DepartmentSet) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*s = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var ids []uint
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("target_audience: %w", err)
		}
		var set DepartmentSet
		for _, id := range ids {
			if id == 0 {
				return fmt.Errorf("target_audience: invalid department id 0")
			}
			set = set.With(id)
		}
		*s = set
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("target_audience: %w", err)
	}
	set, err := ParseDepartmentSet(raw)
	if err != nil {
		return fmt.Errorf("target_audience: %w", err)
	}
	*s = set
	return nil
}
