package storex

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RunItems is stored as a single JSON document column
type RunItems []RunItem

// Value implements driver.Valuer
func (r RunItems) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner
func (r *RunItems) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = RunItems{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("storex: cannot scan %T into RunItems", src)
	}
	return json.Unmarshal(data, r)
}
