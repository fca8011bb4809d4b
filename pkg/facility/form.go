package facility

import (
	"net/url"
	"strings"
)

// Form is an insertion-ordered set of form fields. Setting an existing
// field keeps its original position.
type Form struct {
	keys   []string
	values map[string]string
}

func NewForm() *Form {
	return &Form{values: make(map[string]string)}
}

// Set stores value under name, replacing any previous value.
func (f *Form) Set(name, value string) {
	if _, ok := f.values[name]; !ok {
		f.keys = append(f.keys, name)
	}
	f.values[name] = value
}

// Merge stores value only when it is non-empty.
func (f *Form) Merge(name, value string) {
	if value == "" {
		return
	}
	f.Set(name, value)
}

// MergeForm merges every field of other, in other's order.
func (f *Form) MergeForm(other *Form) {
	for _, k := range other.keys {
		f.Merge(k, other.values[k])
	}
}

// SetDefault stores value only when name is missing or empty.
func (f *Form) SetDefault(name, value string) {
	if f.values[name] == "" {
		f.Set(name, value)
	}
}

func (f *Form) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f *Form) Value(name string) string {
	return f.values[name]
}

func (f *Form) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

func (f *Form) Len() int {
	return len(f.keys)
}

func (f *Form) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Values converts the form to url.Values.
func (f *Form) Values() url.Values {
	v := make(url.Values, len(f.keys))
	for _, k := range f.keys {
		v.Set(k, f.values[k])
	}
	return v
}

// Encode renders the form urlencoded, keeping insertion order.
func (f *Form) Encode() string {
	var b strings.Builder
	for i, k := range f.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.values[k]))
	}
	return b.String()
}
