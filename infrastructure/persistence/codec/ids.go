package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FlexibleID accepts an id submitted either as a JSON string or a number.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = FlexibleID(n.String())
	return nil
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumericID converts an id to a number the way loosely typed clients
// do: surrounding whitespace is ignored, an empty string is zero and
// "Infinity" is accepted. ok is false when the id is not numeric at all.
func ParseNumericID(id string) (value float64, ok bool) {
	s := strings.TrimSpace(id)
	switch s {
	case "":
		return 0, true
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}

	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN(), false
			}
			return float64(n), true
		}
	}

	if !decimalLiteral.MatchString(s) {
		return math.NaN(), false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range parses to ±Inf with ErrRange.
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return math.NaN(), false
	}
	return f, true
}

// numericID presents a string id as a JSON number. Ids that do not map to
// a finite number are written as null.
type numericID string

// MarshalJSON implements json.Marshaler.
func (id numericID) MarshalJSON() ([]byte, error) {
	f, ok := ParseNumericID(string(id))
	if !ok || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	if f == 0 {
		f = 0 // drop negative zero
	}
	return json.Marshal(f)
}

// Millis is a millisecond timestamp submitted as any JSON number, such as
// 1700000000000, 1.7e12 or 1700000000000.0. The value must be integral.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*m = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("date must be a number")
	}
	if i, err := n.Int64(); err == nil {
		*m = Millis(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return fmt.Errorf("date must be an integer number of milliseconds, got %s", n)
	}
	*m = Millis(f)
	return nil
}
