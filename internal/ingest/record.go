package ingest

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/clinimetric-scale-server/internal/domain"
)

// record is one decoded source object together with its location in the document.
// The first conversion failure is kept in the shared errs slot; later reads
// return zero values so mapping code can stay linear.
type record struct {
	path   string
	fields map[string]any
	errs   *error
}

func newRecord(path string, v any, errs *error) (record, bool) {
	m, ok := asMap(v)
	if !ok {
		setErr(errs, domain.NewValidationError(path, "expected an object", v))
		return record{}, false
	}
	return record{path: path, fields: m, errs: errs}, true
}

func (r record) at(field string) string {
	if r.path == "" {
		return field
	}
	return r.path + "." + field
}

func (r record) fail(field, msg string, v any) {
	setErr(r.errs, domain.NewValidationError(r.at(field), msg, v))
}

// lookup returns the first alias present in the object.
func (r record) lookup(aliases []string) (any, bool) {
	for _, key := range aliases {
		if v, ok := r.fields[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r record) str(table map[string][]string, field string) string {
	v, ok := r.lookup(table[field])
	if !ok {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		r.fail(field, "expected a string", v)
		return ""
	}
	return strings.TrimSpace(s)
}

func (r record) integer(table map[string][]string, field string) int {
	v, ok := r.lookup(table[field])
	if !ok {
		return 0
	}
	f, err := toNumber(v)
	if err != nil || f != float64(int(f)) {
		r.fail(field, "expected an integer", v)
		return 0
	}
	return int(f)
}

func (r record) number(table map[string][]string, field string) float64 {
	v, ok := r.lookup(table[field])
	if !ok {
		return 0
	}
	f, err := toNumber(v)
	if err != nil {
		r.fail(field, "expected a number", v)
		return 0
	}
	return f
}

// toNumber coerces numbers and numeric strings. Booleans are refused even
// though cast would map them to 0 and 1.
func toNumber(v any) (float64, error) {
	if _, ok := v.(bool); ok {
		return 0, fmt.Errorf("unable to cast %v of type bool to a number", v)
	}
	return cast.ToFloat64E(v)
}

func (r record) optionalNumber(table map[string][]string, field string) *float64 {
	if _, ok := r.lookup(table[field]); !ok {
		return nil
	}
	f := r.number(table, field)
	return &f
}

func (r record) boolean(table map[string][]string, field string) bool {
	v, ok := r.lookup(table[field])
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		r.fail(field, "expected a boolean", v)
		return false
	}
	return b
}

func (r record) stringList(table map[string][]string, field string) []string {
	v, ok := r.lookup(table[field])
	if !ok {
		return nil
	}
	if s, isString := v.(string); isString {
		return []string{s}
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		r.fail(field, "expected a list of strings", v)
		return nil
	}
	return out
}

// list returns the elements of an array field as records.
func (r record) list(table map[string][]string, field string) []record {
	v, ok := r.lookup(table[field])
	if !ok {
		return nil
	}
	elems, isSlice := v.([]any)
	if !isSlice {
		r.fail(field, "expected a list", v)
		return nil
	}
	out := make([]record, 0, len(elems))
	for i, elem := range elems {
		child, ok := newRecord(fmt.Sprintf("%s[%d]", r.at(field), i), elem, r.errs)
		if !ok {
			return nil
		}
		out = append(out, child)
	}
	return out
}

func (r record) child(table map[string][]string, field string) (record, bool) {
	v, ok := r.lookup(table[field])
	if !ok {
		return record{}, false
	}
	return newRecord(r.at(field), v, r.errs)
}

func (r record) raw(table map[string][]string, field string) (any, bool) {
	return r.lookup(table[field])
}

func setErr(slot *error, err error) {
	if *slot == nil {
		*slot = err
	}
}

// asMap normalises the two object shapes produced by the JSON and YAML decoders.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[cast.ToString(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}
