// Package jsonx holds JSON value types that are lenient about how clients
// encode them.
package jsonx

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decimal is an exact decimal that accepts JSON numbers and numeric strings.
// null and "" decode to zero with Valid false.
type Decimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

// NewDecimal returns a valid Decimal.
func NewDecimal(d decimal.Decimal) Decimal {
	return Decimal{Decimal: d, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Decimal{}
		return nil
	}

	text := data
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decimal: %w", err)
		}
		if s == "" {
			*d = Decimal{}
			return nil
		}
		text = []byte(s)
	}

	v, err := decimal.NewFromString(string(text))
	if err != nil {
		return fmt.Errorf("decimal: cannot parse %s: %w", data, err)
	}
	*d = NewDecimal(v)
	return nil
}

// MarshalJSON writes a JSON number, or null when not valid.
func (d Decimal) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(d.Decimal.String()), nil
}

// String returns the decimal text, or "" when not valid.
func (d Decimal) String() string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
