package ingest

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// ParseItemList converts a subscale membership value into item numbers.
// Accepted shapes: a list of numbers or numeric strings, or a text blob such as
// "1,2,3", "[1, 2, 3]" or "1 2 3". Order is preserved.
func ParseItemList(v any) ([]int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return parseItemBlob(t)
	case []int:
		return append([]int(nil), t...), nil
	case []any:
		items := make([]int, 0, len(t))
		for i, elem := range t {
			n, err := toItemNumber(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, n)
		}
		return items, nil
	default:
		n, err := toItemNumber(t)
		if err != nil {
			return nil, err
		}
		return []int{n}, nil
	}
}

// FormatItemList renders item numbers as the "1,2,3" text form used by storage.
func FormatItemList(items []int) string {
	parts := make([]string, len(items))
	for i, n := range items {
		parts[i] = cast.ToString(n)
	}
	return strings.Join(parts, ",")
}

func parseItemBlob(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})

	items := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := toItemNumber(strings.Trim(f, `"'`))
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, nil
}

func toItemNumber(v any) (int, error) {
	f, err := toNumber(v)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("invalid item number %v", v)
	}
	return int(f), nil
}
