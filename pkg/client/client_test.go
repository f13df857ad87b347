package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/statwerk/pxweb-client/internal/testutil"
)

func newTestClient(t *testing.T, mock *testutil.MockPxWeb, mutate func(*Config)) *Client {
	t.Helper()

	cfg := DefaultConfig(mock.URL(), nil)
	cfg.UserAgent = "pxweb-client-test/0.0.0"
	cfg.PacingInterval = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     Config{BaseURL: "https://api.example.se/v2", UserAgent: "test/1.0"},
			wantErr: false,
		},
		{
			name:    "missing base url",
			cfg:     Config{UserAgent: "test/1.0"},
			wantErr: true,
		},
		{
			name:    "missing user agent",
			cfg:     Config{BaseURL: "https://api.example.se/v2"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{BaseURL: "https://api.example.se/v2", UserAgent: "test/1.0"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.config.Language != LangSwedish {
		t.Errorf("default language = %q, want %q", c.config.Language, LangSwedish)
	}
	if c.config.MaxConcurrency != 1 {
		t.Errorf("default max concurrency = %d, want 1", c.config.MaxConcurrency)
	}
}

func TestGetConfig(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.MaxDataCells = 42000
	mock.MaxCallsPerTimeWindow = 12
	mock.TimeWindow = 20

	c := newTestClient(t, mock, nil)

	cfg, err := c.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig() error: %v", err)
	}
	if cfg.MaxDataCells != 42000 || cfg.MaxCallsPerTimeWindow != 12 || cfg.TimeWindow != 20 {
		t.Errorf("GetConfig() = %+v", cfg)
	}
}

func TestGetTableMetadata(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB1267",
		Variables: []testutil.VariableFixture{
			{Code: "Region", Label: "region", Values: []string{"0114", "0115"}},
			{Code: "Tid", Label: "år", Values: []string{"2023", "2024"}},
		},
	})

	c := newTestClient(t, mock, nil)

	meta, err := c.GetTableMetadata(context.Background(), "TAB1267")
	if err != nil {
		t.Fatalf("GetTableMetadata() error: %v", err)
	}
	if len(meta.Variables) != 2 {
		t.Fatalf("got %d variables, want 2", len(meta.Variables))
	}

	space, err := meta.Space()
	if err != nil {
		t.Fatalf("Space() error: %v", err)
	}
	if space.TotalCells() != 4 {
		t.Errorf("TotalCells() = %d, want 4", space.TotalCells())
	}

	dims := space.Dimensions()
	if dims[0].Code != "Region" || dims[1].Code != "Tid" {
		t.Errorf("dimension order = [%s %s], want [Region Tid]", dims[0].Code, dims[1].Code)
	}
}

func TestGetTableMetadata_NotFound(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()

	c := newTestClient(t, mock, nil)

	_, err := c.GetTableMetadata(context.Background(), "MISSING")
	if err == nil {
		t.Fatal("GetTableMetadata(MISSING), want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v does not wrap APIError", err)
	}
	if apiErr.ErrorClass != ErrorClassClient {
		t.Errorf("error class = %s, want client", apiErr.ErrorClass)
	}
}

func TestListTables_ParamElision(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()

	var gotQuery map[string][]string
	mock.SetHandler("/tables", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tables":[],"page":{"pageNumber":1,"pageSize":5000,"totalPages":1}}`))
	})

	c := newTestClient(t, mock, nil)

	if _, err := c.ListTables(context.Background(), TableQuery{Query: "befolkning"}); err != nil {
		t.Fatalf("ListTables() error: %v", err)
	}

	if got := gotQuery["query"]; len(got) != 1 || got[0] != "befolkning" {
		t.Errorf("query param = %v", got)
	}
	if _, ok := gotQuery["pastDays"]; ok {
		t.Error("pastDays sent despite zero value")
	}
	if got := gotQuery["includeDiscontinued"]; len(got) != 1 || got[0] != "false" {
		t.Errorf("includeDiscontinued param = %v, want [false]", got)
	}
	if got := gotQuery["lang"]; len(got) != 1 || got[0] != "sv" {
		t.Errorf("lang param = %v, want [sv]", got)
	}
}

func TestFindVariable_Normalization(t *testing.T) {
	meta := &TableMetadata{
		TableID: "TAB",
		Variables: []Variable{
			{ID: "ContentsCode", Label: "tabellinnehåll"},
			{ID: "Tid", Label: "år"},
		},
	}

	tests := []struct {
		name    string
		filter  string
		wantID  string
		wantErr bool
	}{
		{name: "exact code", filter: "Tid", wantID: "Tid"},
		{name: "case folded code", filter: "contentscode", wantID: "ContentsCode"},
		{name: "label with spaces trimmed", filter: "  Tabellinnehåll ", wantID: "ContentsCode"},
		{name: "interior spaces removed", filter: "Contents Code", wantID: "ContentsCode"},
		{name: "no match", filter: "Regionen", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := meta.FindVariable(tt.filter)
			if tt.wantErr {
				if !errors.Is(err, ErrVariableNotFound) {
					t.Errorf("FindVariable(%q) error = %v, want ErrVariableNotFound", tt.filter, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindVariable(%q) error: %v", tt.filter, err)
			}
			if v.ID != tt.wantID {
				t.Errorf("FindVariable(%q) = %s, want %s", tt.filter, v.ID, tt.wantID)
			}
		})
	}
}

func TestFindValue_Normalization(t *testing.T) {
	v := &Variable{
		ID: "Region",
		Values: []VariableValue{
			{Code: "0114", Label: "Upplands Väsby"},
			{Code: "0115", Label: "Vallentuna"},
		},
	}

	got, err := v.FindValue("upplandsväsby")
	if err != nil {
		t.Fatalf("FindValue() error: %v", err)
	}
	if got.Code != "0114" {
		t.Errorf("FindValue() = %s, want 0114", got.Code)
	}

	if _, err := v.FindValue("Solna"); !errors.Is(err, ErrValueNotFound) {
		t.Errorf("FindValue(Solna) error = %v, want ErrValueNotFound", err)
	}
}

func TestFetchTableData_PartitionedFetch(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB638",
		Variables: []testutil.VariableFixture{
			{Code: "A", Values: []string{"a0", "a1", "a2", "a3", "a4", "a5", "a6"}},
			{Code: "B", Values: []string{"b0", "b1", "b2"}},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 10
		cfg.MaxConcurrency = 2
	})

	combined, err := c.FetchTableData(context.Background(), "TAB638", FetchOptions{})
	if err != nil {
		t.Fatalf("FetchTableData() error: %v", err)
	}

	// 21 cells under limit 10: exactly 3 sub-requests.
	if got := mock.GetDataPostCount(); got != 3 {
		t.Errorf("data posts = %d, want 3", got)
	}
	if combined.RowCount() != 21 {
		t.Errorf("combined rows = %d, want 21", combined.RowCount())
	}
	if combined.Header != "A,B,value" {
		t.Errorf("header = %q, want A,B,value", combined.Header)
	}

	// Submission order: first fragment's rows start with a0, last with a6.
	if !strings.HasPrefix(combined.Rows[0], "a0,") {
		t.Errorf("first row = %q, want a0 prefix", combined.Rows[0])
	}
	if !strings.HasPrefix(combined.Rows[20], "a6,") {
		t.Errorf("last row = %q, want a6 prefix", combined.Rows[20])
	}
}

func TestFetchTableData_SingleRequest(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB1",
		Variables: []testutil.VariableFixture{
			{Code: "Tid", Values: []string{"2020", "2021", "2022", "2023", "2024"}},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 5
	})

	combined, err := c.FetchTableData(context.Background(), "TAB1", FetchOptions{})
	if err != nil {
		t.Fatalf("FetchTableData() error: %v", err)
	}
	if got := mock.GetDataPostCount(); got != 1 {
		t.Errorf("data posts = %d, want 1", got)
	}
	if combined.RowCount() != 5 {
		t.Errorf("combined rows = %d, want 5", combined.RowCount())
	}
}

func TestFetchTableData_Selection(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB2",
		Variables: []testutil.VariableFixture{
			{Code: "Region", Label: "region", Values: []string{"0114", "0115", "0117"}},
			{Code: "Tid", Label: "år", Values: []string{"2023", "2024"}},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 100
	})

	combined, err := c.FetchTableData(context.Background(), "TAB2", FetchOptions{
		Selection: map[string][]string{
			"region": {"0114"}, // label match, subset of values
		},
	})
	if err != nil {
		t.Fatalf("FetchTableData() error: %v", err)
	}

	// 1 region x 2 years = 2 rows.
	if combined.RowCount() != 2 {
		t.Errorf("combined rows = %d, want 2", combined.RowCount())
	}
	for _, row := range combined.Rows {
		if !strings.HasPrefix(row, "0114,") {
			t.Errorf("row %q not restricted to region 0114", row)
		}
	}
}

func TestFetchTableData_UnknownSelectionVariable(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB3",
		Variables: []testutil.VariableFixture{
			{Code: "Tid", Values: []string{"2024"}},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 100
	})

	_, err := c.FetchTableData(context.Background(), "TAB3", FetchOptions{
		Selection: map[string][]string{"Bogus": {"x"}},
	})
	if !errors.Is(err, ErrVariableNotFound) {
		t.Errorf("FetchTableData() error = %v, want ErrVariableNotFound", err)
	}
	if got := mock.GetDataPostCount(); got != 0 {
		t.Errorf("data posts = %d, want 0 for failed selection", got)
	}
}

func TestFetchTableData_SubRequestFailureDiscardsPartials(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB4",
		Variables: []testutil.VariableFixture{
			{Code: "A", Values: []string{"a0", "a1", "a2", "a3"}},
		},
	})
	mock.FailDataRequests("TAB4", http.StatusNotFound)

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 2 // Forces 2 sub-requests
	})

	combined, err := c.FetchTableData(context.Background(), "TAB4", FetchOptions{})
	if err == nil {
		t.Fatal("FetchTableData() with failing data endpoint, want error")
	}
	if combined != nil {
		t.Errorf("FetchTableData() returned partial table %v alongside error", combined)
	}
}

func TestFetchTableData_ZeroValueVariable(t *testing.T) {
	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB5",
		Variables: []testutil.VariableFixture{
			{Code: "A", Values: []string{"a0", "a1"}},
			{Code: "B", Values: nil},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 100
	})

	combined, err := c.FetchTableData(context.Background(), "TAB5", FetchOptions{})
	if err != nil {
		t.Fatalf("FetchTableData() error: %v", err)
	}
	if got := mock.GetDataPostCount(); got != 0 {
		t.Errorf("data posts = %d, want 0 for empty cross-product", got)
	}
	if combined.RowCount() != 0 || combined.Header != "" {
		t.Errorf("combined = %+v, want empty table", combined)
	}
}

func TestFetchTableData_PacedStarts(t *testing.T) {
	const interval = 25 * time.Millisecond

	mock := testutil.NewMockPxWeb()
	defer mock.Close()
	mock.AddTable(testutil.TableFixture{
		ID: "TAB6",
		Variables: []testutil.VariableFixture{
			{Code: "A", Values: []string{"a0", "a1", "a2", "a3", "a4", "a5"}},
		},
	})

	c := newTestClient(t, mock, func(cfg *Config) {
		cfg.CellLimit = 2 // 3 sub-requests
		cfg.PacingInterval = interval
		cfg.MaxConcurrency = 1
	})

	if _, err := c.FetchTableData(context.Background(), "TAB6", FetchOptions{}); err != nil {
		t.Fatalf("FetchTableData() error: %v", err)
	}

	starts := mock.GetDataStarts()
	if len(starts) != 3 {
		t.Fatalf("data posts = %d, want 3", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// Network delivery adds noise on top of the gate's spacing; allow
		// a generous fraction of the interval.
		if gap < interval/2 {
			t.Errorf("gap between data posts %d and %d = %v, want >= %v", i-1, i, gap, interval)
		}
	}
}
