package pivot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"pivotboard/internal/core"
)

const (
	// UntaggedKey is the grouping key shared by nil, empty and missing values.
	UntaggedKey = "__untagged__"
	// UntaggedLabel is the display label of the untagged bucket.
	UntaggedLabel = "Untagged"
)

// pathSep joins path segments into map keys; it cannot appear in a
// normalized value because normalizeValue trims control characters.
const pathSep = "\x1f"

// PathKey joins path segments into a stable map key.
func PathKey(path []string) string {
	return strings.Join(path, pathSep)
}

// Label returns the display label for a grouping key.
func Label(key string) string {
	if key == UntaggedKey {
		return UntaggedLabel
	}
	return key
}

// valueKey reads column from row and normalizes it. present is false when
// the row does not carry the column at all.
func valueKey(row core.Row, column string, dt DataType) (key string, present bool) {
	v, ok := row[column]
	if !ok {
		return UntaggedKey, false
	}
	return normalizeValue(v, dt), true
}

// rawValue returns the source value behind a grouping key, nil for the
// untagged bucket. Bytes are returned as strings.
func rawValue(row core.Row, column, key string) any {
	if key == UntaggedKey {
		return nil
	}
	switch v := row[column].(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}

// normalizeValue returns the dataType-aware string form used for grouping
// equality. Dates collapse to ISO form so differently formatted inputs
// for the same day share one bucket.
func normalizeValue(v any, dt DataType) string {
	switch x := v.(type) {
	case nil:
		return UntaggedKey
	case time.Time:
		if x.IsZero() {
			return UntaggedKey
		}
		return isoDate(x)
	case *time.Time:
		if x == nil || x.IsZero() {
			return UntaggedKey
		}
		return isoDate(*x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return normalizeString(x, dt)
	case []byte:
		return normalizeString(string(x), dt)
	}
	if f, ok := core.ToFloat(v); ok {
		return formatKeyFloat(f)
	}
	return normalizeString(fmt.Sprint(v), dt)
}

func normalizeString(s string, dt DataType) string {
	s = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s))
	if s == "" {
		return UntaggedKey
	}
	switch dt {
	case TypeDate:
		if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return isoDate(t)
		}
	case TypeNumber, TypeCurrency:
		if f, ok := core.ToFloat(s); ok {
			return formatKeyFloat(f)
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return strconv.FormatBool(b)
		}
	}
	return s
}

func isoDate(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func formatKeyFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
