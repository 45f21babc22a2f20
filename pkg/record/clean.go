package record

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Field names shared by both extract kinds.
const (
	FieldProductID   = "product_id"
	FieldProductName = "product_name"
	FieldCategory    = "category"
	FieldSaleDate    = "sale_date"
	FieldQuantity    = "quantity"
	FieldPrice       = "price"
)

// Bounds shared by both warehouse dialects: quantity is a 32-bit INTEGER
// and DATE has no year zero.
const (
	maxQuantity = math.MaxInt32
	minDateYear = 1
)

// dateLayouts are tried in order; timestamps keep only their calendar day.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CleanProduct coerces a catalog record. Missing fields become "".
func CleanProduct(raw Raw) Product {
	return Product{
		ProductID:   strings.TrimSpace(String(raw[FieldProductID])),
		ProductName: strings.TrimSpace(String(raw[FieldProductName])),
		Category:    strings.TrimSpace(String(raw[FieldCategory])),
	}
}

// CleanSale coerces a sales record. Unparseable values fall back to a null
// date, zero quantity and zero price.
func CleanSale(raw Raw) Sale {
	return Sale{
		ProductID: strings.TrimSpace(String(raw[FieldProductID])),
		SaleDate:  ParseDate(raw[FieldSaleDate]),
		Quantity:  Quantity(raw[FieldQuantity]),
		Price:     Price(raw[FieldPrice]),
	}
}

// String renders any decoded value as text. Nested objects and arrays
// are rendered as compact JSON.
func String(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer: // json.Number
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// ParseDate returns the ISO calendar date in v, or a null Date.
func ParseDate(v any) Date {
	s := strings.TrimSpace(String(v))
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() < minDateYear {
				return Date{}
			}
			return NewDate(t.Year(), t.Month(), t.Day())
		}
	}
	return Date{}
}

// Quantity returns v as a non-negative integer that fits a 32-bit column,
// or 0. Decimal text is accepted only when it has no fractional part.
func Quantity(v any) int {
	s := strings.TrimSpace(String(v))
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 0); err == nil {
		if n < 0 || n > maxQuantity {
			return 0
		}
		return int(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > maxQuantity {
		return 0
	}
	return int(f)
}

// Price returns v as a finite non-negative real, or 0. Currency symbols
// and thousands separators are ignored.
func Price(v any) float64 {
	s := strings.TrimSpace(String(v))
	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
