package core

import (
	"fmt"
	"sort"
	"strings"
)

// Binding is the state of one field in a ColumnMapping. A field with no
// entry has not been considered yet; Unset marks an explicit "no column".
type Binding struct {
	Label string `json:"label,omitempty"`
	Unset bool   `json:"unset,omitempty"`
}

// Bound reports whether the binding names a column.
func (b Binding) Bound() bool {
	return !b.Unset && b.Label != ""
}

// ColumnMapping binds canonical field keys to header labels.
type ColumnMapping map[string]Binding

// AutoMap proposes a mapping. For each field, headers are scanned in column
// order and the first one equal to or containing an alias (or the field key)
// wins. Fields with no match are left unconsidered.
func AutoMap(headers []string, fields []FieldSpec) ColumnMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeLabel(h)
	}

	m := make(ColumnMapping, len(fields))
	for _, f := range fields {
		aliases := append([]string{f.Key}, f.Aliases...)
		if idx := matchHeader(normalized, aliases); idx >= 0 {
			m[f.Key] = Binding{Label: headers[idx]}
		}
	}
	return m
}

func matchHeader(normalized []string, aliases []string) int {
	for i, h := range normalized {
		if h == "" {
			continue
		}
		for _, a := range aliases {
			a = normalizeLabel(a)
			if a == "" {
				continue
			}
			if h == a || strings.Contains(h, a) {
				return i
			}
		}
	}
	return -1
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Clone returns an independent copy.
func (m ColumnMapping) Clone() ColumnMapping {
	out := make(ColumnMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Set binds field to label. Both must exist.
func (m ColumnMapping) Set(fields []FieldSpec, headers []string, field, label string) error {
	if !hasField(fields, field) {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidMapping, field)
	}
	for _, h := range headers {
		if h == label {
			m[field] = Binding{Label: label}
			return nil
		}
	}
	return fmt.Errorf("%w: unknown column %q", ErrInvalidMapping, label)
}

// Unset marks field as explicitly bound to no column.
func (m ColumnMapping) Unset(fields []FieldSpec, field string) error {
	if !hasField(fields, field) {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidMapping, field)
	}
	m[field] = Binding{Unset: true}
	return nil
}

// Label returns the bound label for field.
func (m ColumnMapping) Label(field string) (string, bool) {
	b, ok := m[field]
	if !ok || !b.Bound() {
		return "", false
	}
	return b.Label, true
}

// Missing lists required fields with no bound column, in field order.
func (m ColumnMapping) Missing(fields []FieldSpec) []string {
	var missing []string
	for _, f := range fields {
		if !f.Required {
			continue
		}
		if _, ok := m.Label(f.Key); !ok {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// Validate returns a *MappingIncompleteError when a required field is unbound.
func (m ColumnMapping) Validate(fields []FieldSpec) error {
	if missing := m.Missing(fields); len(missing) > 0 {
		return &MappingIncompleteError{Missing: missing}
	}
	return nil
}

// Columns resolves each bound field to its column index in headers.
func (m ColumnMapping) Columns(headers []string) map[string]int {
	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		pos[h] = i
	}
	cols := make(map[string]int, len(m))
	for field, b := range m {
		if !b.Bound() {
			continue
		}
		if i, ok := pos[b.Label]; ok {
			cols[field] = i
		}
	}
	return cols
}

// sortedKeys returns the mapping's field keys in lexical order.
func (m ColumnMapping) sortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func hasField(fields []FieldSpec, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}
