package table

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name       string
		fragments  []string
		wantHeader string
		wantRows   []string
	}{
		{
			name: "two fragments",
			fragments: []string{
				"region,year,population\n0114,2023,45000\n0114,2024,45900\n",
				"region,year,population\n0115,2023,11000\n",
			},
			wantHeader: "region,year,population",
			wantRows:   []string{"0114,2023,45000", "0114,2024,45900", "0115,2023,11000"},
		},
		{
			name: "crlf line endings",
			fragments: []string{
				"a,b\r\n1,2\r\n",
				"a,b\r\n3,4\r\n",
			},
			wantHeader: "a,b",
			wantRows:   []string{"1,2", "3,4"},
		},
		{
			name:       "header-only fragment",
			fragments:  []string{"a,b\n", "a,b\n5,6\n"},
			wantHeader: "a,b",
			wantRows:   []string{"5,6"},
		},
		{
			name:       "single fragment",
			fragments:  []string{"x\n1\n2\n3\n"},
			wantHeader: "x",
			wantRows:   []string{"1", "2", "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fragments := make([][]byte, len(tt.fragments))
			for i, f := range tt.fragments {
				fragments[i] = []byte(f)
			}

			got, err := Combine(fragments)
			if err != nil {
				t.Fatalf("Combine() error: %v", err)
			}
			if got.Header != tt.wantHeader {
				t.Errorf("Header = %q, want %q", got.Header, tt.wantHeader)
			}
			if !reflect.DeepEqual(got.Rows, tt.wantRows) {
				t.Errorf("Rows = %v, want %v", got.Rows, tt.wantRows)
			}
		})
	}
}

func TestCombine_NoFragments(t *testing.T) {
	if _, err := Combine(nil); !errors.Is(err, ErrNoFragments) {
		t.Errorf("Combine(nil) error = %v, want ErrNoFragments", err)
	}
}

func TestCombine_HeaderMismatch(t *testing.T) {
	fragments := [][]byte{
		[]byte("a,b\n1,2\n"),
		[]byte("a,c\n3,4\n"),
	}
	if _, err := Combine(fragments); !errors.Is(err, ErrHeaderMismatch) {
		t.Errorf("Combine() error = %v, want ErrHeaderMismatch", err)
	}
}

func TestCombine_AppendEquivalence(t *testing.T) {
	// Combining [A, B, C] equals combining [A, B] then appending C.
	a := []byte("h\n1\n")
	b := []byte("h\n2\n")
	c := []byte("h\n3\n4\n")

	all, err := Combine([][]byte{a, b, c})
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}

	partial, err := Combine([][]byte{a, b})
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}
	if err := partial.Append(c); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	if !reflect.DeepEqual(all.Rows, partial.Rows) {
		t.Errorf("rows differ: %v vs %v", all.Rows, partial.Rows)
	}
}

func TestTable_Append_HeaderMismatch(t *testing.T) {
	tab, err := Combine([][]byte{[]byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatalf("Combine() error: %v", err)
	}
	if err := tab.Append([]byte("other\n9\n")); !errors.Is(err, ErrHeaderMismatch) {
		t.Errorf("Append() error = %v, want ErrHeaderMismatch", err)
	}
}

func TestTable_WriteTo(t *testing.T) {
	tab := &Table{Header: "a,b", Rows: []string{"1,2", "3,4"}}

	var sb strings.Builder
	n, err := tab.WriteTo(&sb)
	if err != nil {
		t.Fatalf("WriteTo() error: %v", err)
	}

	want := "a,b\n1,2\n3,4\n"
	if sb.String() != want {
		t.Errorf("WriteTo() wrote %q, want %q", sb.String(), want)
	}
	if n != int64(len(want)) {
		t.Errorf("WriteTo() returned %d bytes, want %d", n, len(want))
	}
}

func TestTable_RowCount(t *testing.T) {
	tab := &Table{Header: "h", Rows: []string{"1", "2"}}
	if got := tab.RowCount(); got != 2 {
		t.Errorf("RowCount() = %d, want 2", got)
	}
}
