package record

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestCleanProduct(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want Product
	}{
		{
			name: "strings pass through",
			raw:  Raw{"product_id": "P001", "product_name": "Product 1", "category": "Electronics"},
			want: Product{ProductID: "P001", ProductName: "Product 1", Category: "Electronics"},
		},
		{
			name: "numbers keep their literal text",
			raw:  Raw{"product_id": json.Number("1001"), "product_name": 3.5, "category": true},
			want: Product{ProductID: "1001", ProductName: "3.5", Category: "true"},
		},
		{
			name: "missing and null fields become empty",
			raw:  Raw{"product_id": "P002", "category": nil},
			want: Product{ProductID: "P002"},
		},
		{
			name: "whitespace trimmed",
			raw:  Raw{"product_id": " P003 ", "product_name": "Lamp\t", "category": " Home "},
			want: Product{ProductID: "P003", ProductName: "Lamp", Category: "Home"},
		},
		{
			name: "nested values rendered as json",
			raw:  Raw{"product_id": "P004", "product_name": []any{"a", "b"}, "category": "Books"},
			want: Product{ProductID: "P004", ProductName: `["a","b"]`, Category: "Books"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanProduct(tt.raw)
			if got != tt.want {
				t.Errorf("CleanProduct() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCleanSale_Fallbacks(t *testing.T) {
	got := CleanSale(Raw{
		"product_id": "P001",
		"sale_date":  "not-a-date",
		"quantity":   "lots",
		"price":      "N/A",
	})
	if got.ProductID != "P001" {
		t.Errorf("ProductID = %q, want P001", got.ProductID)
	}
	if got.SaleDate.Valid {
		t.Errorf("SaleDate = %v, want null", got.SaleDate)
	}
	if got.Quantity != 0 {
		t.Errorf("Quantity = %d, want 0", got.Quantity)
	}
	if got.Price != 0.0 {
		t.Errorf("Price = %v, want 0", got.Price)
	}
}

func TestCleanSale_MissingFields(t *testing.T) {
	got := CleanSale(Raw{})
	want := Sale{}
	if got != want {
		t.Errorf("CleanSale(empty) = %+v, want %+v", got, want)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"2024-03-15", "2024-03-15"},
		{" 2024-03-15 ", "2024-03-15"},
		{"2024-03-15T10:30:00Z", "2024-03-15"},
		{"2024-03-15 23:59:59", "2024-03-15"},
		{"2024-02-30", ""},
		{"15/03/2024", ""},
		{"not-a-date", ""},
		{"0000-01-01", ""},
		{"0000-12-31T10:00:00Z", ""},
		{"0001-01-01", "0001-01-01"},
		{"9999-12-31", "9999-12-31"},
		{"", ""},
		{nil, ""},
		{json.Number("20240315"), ""},
	}
	for _, tt := range tests {
		got := ParseDate(tt.in)
		if got.String() != tt.want {
			t.Errorf("ParseDate(%v) = %q, want %q", tt.in, got.String(), tt.want)
		}
		if got.Valid != (tt.want != "") {
			t.Errorf("ParseDate(%v).Valid = %v", tt.in, got.Valid)
		}
	}
}

func TestQuantity(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{"3", 3},
		{" 12 ", 12},
		{"3.0", 3},
		{"2.5", 0},
		{"-4", 0},
		{"2147483647", 2147483647},
		{"2147483648", 0},
		{"3000000000", 0},
		{"3000000000.0", 0},
		{"abc", 0},
		{"", 0},
		{nil, 0},
		{json.Number("7"), 7},
		{float64(9), 9},
	}
	for _, tt := range tests {
		if got := Quantity(tt.in); got != tt.want {
			t.Errorf("Quantity(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		in   any
		want float64
	}{
		{"19.99", 19.99},
		{"$1,250.50", 1250.50},
		{"€ 5", 5},
		{"N/A", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"-3.5", 0},
		{"", 0},
		{json.Number("42.1"), 42.1},
	}
	for _, tt := range tests {
		if got := Price(tt.in); got != tt.want {
			t.Errorf("Price(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDateValue(t *testing.T) {
	v, err := Date{}.Value()
	if err != nil || v != nil {
		t.Errorf("null Date.Value() = %v, %v; want nil, nil", v, err)
	}
	v, err = NewDate(2024, 1, 2).Value()
	if err != nil || v != "2024-01-02" {
		t.Errorf("Date.Value() = %v, %v; want 2024-01-02", v, err)
	}
}
