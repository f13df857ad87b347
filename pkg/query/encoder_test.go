package query

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/statwerk/pxweb-client/pkg/partition"
)

func TestBuildSelection(t *testing.T) {
	cfg := partition.Config{Batches: []partition.Batch{
		{Code: "Region", Values: []string{"0114", "0115", "0117"}},
		{Code: "Tid", Values: []string{"2023", "2024"}},
	}}

	p := BuildSelection(cfg)

	if len(p.Selection) != 2 {
		t.Fatalf("Selection has %d entries, want 2", len(p.Selection))
	}
	if p.Selection[0].VariableCode != "Region" || p.Selection[1].VariableCode != "Tid" {
		t.Errorf("variable order = [%s %s], want [Region Tid]",
			p.Selection[0].VariableCode, p.Selection[1].VariableCode)
	}
	if !reflect.DeepEqual(p.Selection[0].ValueCodes, []string{"0114", "0115", "0117"}) {
		t.Errorf("Region values = %v, order not preserved", p.Selection[0].ValueCodes)
	}
}

func TestBuildSelection_CopiesValues(t *testing.T) {
	values := []string{"a", "b"}
	cfg := partition.Config{Batches: []partition.Batch{{Code: "A", Values: values}}}

	p := BuildSelection(cfg)
	values[0] = "mutated"

	if p.Selection[0].ValueCodes[0] != "a" {
		t.Error("payload aliases the batch's backing array")
	}
}

func TestPayload_Marshal(t *testing.T) {
	cfg := partition.Config{Batches: []partition.Batch{
		{Code: "ContentsCode", Values: []string{"BE0101N1"}},
	}}

	data, err := BuildSelection(cfg).Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	want := `{"selection":[{"variableCode":"ContentsCode","valueCodes":["BE0101N1"]}]}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
