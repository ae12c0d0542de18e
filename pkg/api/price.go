package api

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Price is a decimal amount with two decimal places and at most five digits,
// stored as hundredths. It is serialized as a string ("5.00").
type Price int64

// MaxPrice is the largest representable price (999.99)
const MaxPrice Price = 99999

var priceRe = regexp.MustCompile(`^(-?)(\d{1,3})(?:\.(\d{1,2}))?$`)

// ParsePrice parses a decimal string such as "5", "5.5" or "12.25"
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	m := priceRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid price %q: expected at most 3 digits before and 2 after the decimal point", s)
	}

	whole, _ := strconv.ParseInt(m[2], 10, 64)
	frac := int64(0)
	if m[3] != "" {
		frac, _ = strconv.ParseInt(m[3], 10, 64)
		if len(m[3]) == 1 {
			frac *= 10
		}
	}

	p := Price(whole*100 + frac)
	if m[1] == "-" {
		p = -p
	}
	return p, nil
}

// String formats the price with exactly two decimals
func (p Price) String() string {
	sign := ""
	v := int64(p)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON implements json.Marshaler
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.String())), nil
}

// UnmarshalJSON accepts both JSON numbers and strings
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("invalid price: %w", err)
		}
		data = []byte(s)
	}
	parsed, err := ParsePrice(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value implements driver.Valuer
func (p Price) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements sql.Scanner. PostgreSQL returns NUMERIC as text while SQLite
// may hand back integers or floats.
func (p *Price) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return p.scanString(string(v))
	case string:
		return p.scanString(v)
	case int64:
		*p = Price(v * 100)
		return nil
	case float64:
		return p.scanString(strconv.FormatFloat(v, 'f', 2, 64))
	case nil:
		*p = 0
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Price", src)
	}
}

func (p *Price) scanString(s string) error {
	// Database values may carry more decimals than we accept as input
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 2 {
		s = s[:dot+3]
	}
	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
