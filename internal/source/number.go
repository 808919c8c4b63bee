package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number is a nullable upstream figure that may be encoded as a JSON number,
// a numeric string or null.
type Number struct {
	Value float64
	Valid bool
}

// UnmarshalJSON accepts 1.5, "1.5", "1,5", "" and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// Free text such as "n/a" means no value.
			return nil //nolint:nilerr // unparsable strings are treated as null
		}
		n.Value, n.Valid = f, true
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("number: %w", err)
	}
	n.Value, n.Valid = f, true
	return nil
}

// Ptr returns a pointer to the value, or nil when it is null.
func (n Number) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Positive returns a pointer to the value when it is greater than zero.
func (n Number) Positive() *float64 {
	if !n.Valid || n.Value <= 0 {
		return nil
	}
	return n.Ptr()
}
