package dbtypes

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUIDArray persists an ordered id list as a Postgres array literal. SQLite
// stores the same literal as text, so both drivers round-trip it.
type UUIDArray []uuid.UUID

func (a *UUIDArray) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = UUIDArray{}
		return nil
	case string:
		return a.parse(v)
	case []byte:
		return a.parse(string(v))
	default:
		return fmt.Errorf("UUIDArray: unsupported Scan type %T", src)
	}
}

func (a UUIDArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "{}", nil
	}
	parts := make([]string, len(a))
	for i, id := range a {
		parts[i] = id.String()
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// Contains reports whether id is present.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, candidate := range a {
		if candidate == id {
			return true
		}
	}
	return false
}

func (a *UUIDArray) parse(s string) error {
	s = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "{"), "}")
	if strings.TrimSpace(s) == "" {
		*a = UUIDArray{}
		return nil
	}

	raw := strings.Split(s, ",")
	out := make(UUIDArray, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(strings.Trim(r, `"`))
		id, err := uuid.Parse(r)
		if err != nil {
			return fmt.Errorf("UUIDArray: parse %q: %w", r, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}
