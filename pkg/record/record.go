// Package record defines the cleaned shapes of catalog and sales extract
// rows and the coercions that produce them from loosely typed input.
package record

import (
	"database/sql/driver"
	"time"
)

// Raw is one undecoded extract record keyed by column or field name.
// Values are whatever the reader produced: strings for delimited files,
// json.Number, string, bool, nil, maps or slices for JSON documents.
type Raw map[string]any

// Product is a cleaned catalog record.
type Product struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
}

// Sale is a cleaned sales record.
type Sale struct {
	ProductID string  `json:"product_id"`
	SaleDate  Date    `json:"sale_date"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// DateLayout is the ISO calendar date layout used on input and in storage.
const DateLayout = "2006-01-02"

// Date is a calendar date that may be absent. The zero value is null.
type Date struct {
	Time  time.Time
	Valid bool
}

// NewDate returns a valid Date for the calendar day of t.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// String returns the ISO form of the date, or "" when null.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(DateLayout)
}

// Value implements driver.Valuer. Dates are stored as ISO text so the
// same value binds to a Postgres DATE column and a SQLite TEXT column.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(DateLayout), nil
}

// MarshalJSON renders the date as an ISO string or null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}
