// Package testutil provides testing utilities for the PxWeb client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TableFixture describes a table served by the mock: variable codes in
// order, each with its value codes.
type TableFixture struct {
	ID        string
	Variables []VariableFixture
}

// VariableFixture is one variable of a table fixture.
type VariableFixture struct {
	Code   string
	Label  string
	Values []string
}

// MockPxWeb is a configurable mock PxWeb v2 server for testing. It serves
// /config, /navigation, /tables, table metadata, and table data. Data
// responses are CSV fragments generated from the posted selection, so
// tests can verify reassembly against the requested cross-product.
type MockPxWeb struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	tables   map[string]TableFixture

	// Service limits advertised by /config.
	MaxDataCells          int
	MaxCallsPerTimeWindow int
	TimeWindow            int

	// Tracking
	RequestCount  int
	DataPostCount int
	DataStarts    []time.Time
	Selections    []map[string][]string
}

// NewMockPxWeb creates a mock server with SCB-like default limits.
func NewMockPxWeb() *MockPxWeb {
	mock := &MockPxWeb{
		handlers:              make(map[string]http.HandlerFunc),
		tables:                make(map[string]TableFixture),
		MaxDataCells:          150000,
		MaxCallsPerTimeWindow: 30,
		TimeWindow:            10,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()
		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockPxWeb) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPxWeb) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPxWeb) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.DataPostCount = 0
	m.DataStarts = nil
	m.Selections = nil
}

// AddTable registers a table fixture served via metadata and data endpoints.
func (m *MockPxWeb) AddTable(fixture TableFixture) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[fixture.ID] = fixture
}

// SetHandler overrides the handler for a specific path.
func (m *MockPxWeb) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// FailDataRequests makes the table's data endpoint return the given status
// for every POST.
func (m *MockPxWeb) FailDataRequests(tableID string, status int) {
	m.SetHandler("/tables/"+tableID+"/data", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"error": "injected failure"}`)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPxWeb) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetDataPostCount returns the number of data POSTs received.
func (m *MockPxWeb) GetDataPostCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.DataPostCount
}

// GetDataStarts returns the arrival times of data POSTs, for pacing
// assertions.
func (m *MockPxWeb) GetDataStarts() []time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Time(nil), m.DataStarts...)
}

func (m *MockPxWeb) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/config":
		m.serveConfig(w)
	case strings.HasPrefix(r.URL.Path, "/navigation/"):
		m.serveNavigation(w, strings.TrimPrefix(r.URL.Path, "/navigation/"))
	case r.URL.Path == "/tables":
		m.serveTables(w)
	case strings.HasSuffix(r.URL.Path, "/metadata"):
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tables/"), "/metadata")
		m.serveMetadata(w, id)
	case strings.HasSuffix(r.URL.Path, "/data") && r.Method == http.MethodPost:
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/tables/"), "/data")
		m.serveData(w, r, id)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error": "no such endpoint"}`)
	}
}

func (m *MockPxWeb) serveConfig(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"maxDataCells":          m.MaxDataCells,
		"maxCallsPerTimeWindow": m.MaxCallsPerTimeWindow,
		"timeWindow":            m.TimeWindow,
	})
}

func (m *MockPxWeb) serveNavigation(w http.ResponseWriter, folderID string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":         folderID,
		"objectType": "FolderInformation",
		"label":      "Folder " + folderID,
		"folderContents": []map[string]string{
			{"id": folderID + "_SUB", "objectType": "FolderInformation", "label": "Subfolder"},
		},
	})
}

func (m *MockPxWeb) serveTables(w http.ResponseWriter) {
	m.mu.RLock()
	tables := make([]map[string]any, 0, len(m.tables))
	for id := range m.tables {
		tables = append(tables, map[string]any{"id": id, "label": "Table " + id})
	}
	m.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tables": tables,
		"page":   map[string]int{"pageNumber": 1, "pageSize": 5000, "totalPages": 1},
	})
}

func (m *MockPxWeb) serveMetadata(w http.ResponseWriter, tableID string) {
	m.mu.RLock()
	fixture, ok := m.tables[tableID]
	m.mu.RUnlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error": "table %s not found"}`, tableID)
		return
	}

	variables := make([]map[string]any, 0, len(fixture.Variables))
	for _, v := range fixture.Variables {
		values := make([]map[string]string, 0, len(v.Values))
		for _, code := range v.Values {
			values = append(values, map[string]string{"code": code, "label": "Label " + code})
		}
		label := v.Label
		if label == "" {
			label = v.Code
		}
		variables = append(variables, map[string]any{
			"id":     v.Code,
			"label":  label,
			"type":   "RegularVariable",
			"values": values,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"variables": variables})
}

// serveData answers a data POST with a CSV fragment: one header row naming
// the variable codes plus a value column, and one row per cell of the
// posted selection's cross-product.
func (m *MockPxWeb) serveData(w http.ResponseWriter, r *http.Request, tableID string) {
	m.mu.Lock()
	m.DataPostCount++
	m.DataStarts = append(m.DataStarts, time.Now())
	m.mu.Unlock()

	var payload struct {
		Selection []struct {
			VariableCode string   `json:"variableCode"`
			ValueCodes   []string `json:"valueCodes"`
		} `json:"selection"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, `{"error": "bad selection payload"}`)
		return
	}

	selection := make(map[string][]string, len(payload.Selection))
	codes := make([]string, 0, len(payload.Selection))
	for _, s := range payload.Selection {
		selection[s.VariableCode] = s.ValueCodes
		codes = append(codes, s.VariableCode)
	}
	m.mu.Lock()
	m.Selections = append(m.Selections, selection)
	m.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(strings.Join(codes, ","))
	sb.WriteString(",value\n")

	rows := [][]string{{}}
	for _, code := range codes {
		var next [][]string
		for _, row := range rows {
			for _, value := range selection[code] {
				next = append(next, append(append([]string(nil), row...), value))
			}
		}
		rows = next
	}
	for _, row := range rows {
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString(",1\n")
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sb.String()))
}
