package invoice

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// LineItems is the JSONB-persisted table part of the invoice.
type LineItems []LineItem

// Scan implements sql.Scanner for PostgreSQL JSONB.
func (l *LineItems) Scan(src any) error {
	return scanJSON(src, l, "LineItems")
}

// Value implements driver.Valuer for PostgreSQL JSONB.
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for PostgreSQL JSONB.
func (d *GlobalDiscount) Scan(src any) error {
	if src == nil {
		*d = GlobalDiscount{Type: DiscountPercentage}
		return nil
	}
	return scanJSON(src, d, "GlobalDiscount")
}

func scanJSON(src, dst any, what string) error {
	var source []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return fmt.Errorf("unsupported type for %s: %T", what, src)
	}
	if len(source) == 0 {
		return nil
	}
	return json.Unmarshal(source, dst)
}
