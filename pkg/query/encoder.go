// Package query encodes request configurations into the PxWeb v2 selection
// payload sent with table data requests.
package query

import (
	"encoding/json"
	"fmt"

	"github.com/statwerk/pxweb-client/pkg/partition"
)

// VariableSelection selects a set of value codes for one variable.
type VariableSelection struct {
	VariableCode string   `json:"variableCode"`
	ValueCodes   []string `json:"valueCodes"`
}

// Payload is the body of a PxWeb data request: one selection entry per
// variable of the table.
type Payload struct {
	Selection []VariableSelection `json:"selection"`
}

// BuildSelection converts one request configuration into a wire payload,
// one selection entry per dimension in configuration order. Batch-internal
// value order is preserved.
func BuildSelection(cfg partition.Config) Payload {
	p := Payload{Selection: make([]VariableSelection, 0, len(cfg.Batches))}
	for _, b := range cfg.Batches {
		values := make([]string, len(b.Values))
		copy(values, b.Values)
		p.Selection = append(p.Selection, VariableSelection{
			VariableCode: b.Code,
			ValueCodes:   values,
		})
	}
	return p
}

// Marshal renders the payload as JSON.
func (p Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal selection payload: %w", err)
	}
	return data, nil
}
