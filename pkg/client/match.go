package client

import (
	"fmt"
	"strings"
)

// normalizeName prepares a name for matching: trim surrounding whitespace,
// case-fold, remove interior spaces. Matching is exact after normalization,
// never approximate.
func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

// FindVariable resolves a caller-supplied filter against a table's
// variables, matching either the variable's code or its display label
// after normalization.
func (m *TableMetadata) FindVariable(filter string) (*Variable, error) {
	want := normalizeName(filter)
	for i := range m.Variables {
		v := &m.Variables[i]
		if normalizeName(v.ID) == want || normalizeName(v.Label) == want {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in table %s", ErrVariableNotFound, filter, m.TableID)
}

// FindValue resolves a value filter against a variable's values, matching
// code or label after normalization.
func (v *Variable) FindValue(filter string) (*VariableValue, error) {
	want := normalizeName(filter)
	for i := range v.Values {
		val := &v.Values[i]
		if normalizeName(val.Code) == want || normalizeName(val.Label) == want {
			return val, nil
		}
	}
	return nil, fmt.Errorf("%w: %q in variable %s", ErrValueNotFound, filter, v.ID)
}
