package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// NotAvailable replaces missing text values.
const NotAvailable = "N/A"

var errNotConvertible = errors.New("value not convertible")

// Sanitize returns a copy of t whose values are primitive and free of
// missing markers, so the renderer can serialize every row:
//
//	text  -> string, missing becomes "N/A"
//	float -> float64, missing becomes 0
//	int   -> int64, missing becomes 0
//
// Columns named in skip are copied untouched. A column holding a value its
// kind cannot represent is also copied untouched and reported in skipped.
// Sanitizing an already sanitized table returns an equal table.
func Sanitize(t *Table, skip ...string) (out *Table, skipped []string) {
	excluded := make(map[string]bool, len(skip))
	for _, name := range skip {
		excluded[name] = true
	}

	out = &Table{index: make(map[string]int, len(t.columns)), rows: t.Len()}
	for _, c := range t.columns {
		converted := c
		if !excluded[c.Name] {
			values, err := convertColumn(c)
			if err != nil {
				skipped = append(skipped, c.Name)
			} else {
				converted = &Column{Name: c.Name, Kind: c.Kind, Values: values}
			}
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, converted)
	}
	return out, skipped
}

func convertColumn(c *Column) ([]any, error) {
	values := make([]any, len(c.Values))
	for i, v := range c.Values {
		var (
			converted any
			err       error
		)
		switch c.Kind {
		case KindFloat:
			converted, err = ToFloat(v)
		case KindInt:
			converted, err = ToInt(v)
		default:
			converted = ToText(v)
		}
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", c.Name, i, err)
		}
		values[i] = converted
	}
	return values, nil
}

// ToText renders v as a string; missing values become NotAvailable.
func ToText(v any) string {
	if IsMissing(v) {
		return NotAvailable
	}
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return formatTime(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

// ToFloat converts v to float64; missing and non-finite values become 0.
func ToFloat(v any) (float64, error) {
	f, err := parseFloat(v)
	if err != nil || !isFinite(f) {
		return 0, err
	}
	return f, nil
}

func parseFloat(v any) (float64, error) {
	if IsMissing(v) {
		return 0, nil
	}
	if f, ok := numeric(v); ok {
		return f, nil
	}
	switch x := v.(type) {
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q as float", errNotConvertible, x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T as float", errNotConvertible, v)
	}
}

// ToInt converts v to int64; missing values become 0. Floats are truncated.
func ToInt(v any) (int64, error) {
	if IsMissing(v) {
		return 0, nil
	}
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", errNotConvertible, x)
		}
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q as int", errNotConvertible, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %T as int", errNotConvertible, v)
	}
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}
