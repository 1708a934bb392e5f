package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a time-ordered (v7) id. Stores break timestamp ties on id,
// so rows written in the same instant still list in insertion order.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// JSONMap represents a generic JSON object stored in a JSONB column.
type JSONMap map[string]interface{}

// Value encodes the map as a JSON string. lib/pq sends []byte as bytea,
// which Postgres refuses for jsonb columns.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json map: %w", err)
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json source type %T", src)
	}
}
