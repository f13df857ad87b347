package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/statwerk/pxweb-client/pkg/pacing"
	"github.com/statwerk/pxweb-client/pkg/partition"
)

// defaultPageSize for table listings; large enough to return a full
// listing in one call.
const defaultPageSize = 5000

// APIConfig is the service configuration advertised by GET /config: the
// per-request cell limit and the rate window the client must stay under.
type APIConfig struct {
	MaxDataCells          int `json:"maxDataCells"`
	MaxCallsPerTimeWindow int `json:"maxCallsPerTimeWindow"`
	TimeWindow            int `json:"timeWindow"` // seconds
}

// GetConfig fetches the service configuration.
func (c *Client) GetConfig(ctx context.Context) (*APIConfig, error) {
	body, err := c.get(ctx, "/config", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch api config: %w", err)
	}

	var cfg APIConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("parse api config: %w", err)
	}

	c.logger.Info().
		Int("max_data_cells", cfg.MaxDataCells).
		Int("max_calls", cfg.MaxCallsPerTimeWindow).
		Int("time_window_s", cfg.TimeWindow).
		Msg("Discovered API config")

	return &cfg, nil
}

// Folder is one entry of the navigation tree.
type Folder struct {
	ID          string       `json:"id"`
	ObjectType  string       `json:"objectType"`
	Label       string       `json:"label"`
	Description string       `json:"description"`
	Contents    []FolderItem `json:"folderContents"`
}

// FolderItem is a folder or table reference inside a navigation folder.
type FolderItem struct {
	ID         string `json:"id"`
	ObjectType string `json:"objectType"` // "FolderInformation" or "Table"
	Label      string `json:"label"`
}

// GetNavigation fetches the navigation folder with the given ID. An empty
// ID returns the root folder.
func (c *Client) GetNavigation(ctx context.Context, folderID string) (*Folder, error) {
	body, err := c.get(ctx, "/navigation/"+folderID, c.baseParams())
	if err != nil {
		return nil, fmt.Errorf("fetch navigation %q: %w", folderID, err)
	}

	var folder Folder
	if err := json.Unmarshal(body, &folder); err != nil {
		return nil, fmt.Errorf("parse navigation response: %w", err)
	}
	return &folder, nil
}

// TableQuery filters the table listing. Zero values are omitted from the
// request.
type TableQuery struct {
	// Query filters tables by name or other attributes.
	Query string

	// PastDays restricts to tables updated in the last N days.
	PastDays int

	// IncludeDiscontinued includes discontinued tables.
	IncludeDiscontinued bool
}

// TableInfo describes one table in a listing.
type TableInfo struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Description   string   `json:"description"`
	Updated       string   `json:"updated"`
	FirstPeriod   string   `json:"firstPeriod"`
	LastPeriod    string   `json:"lastPeriod"`
	VariableNames []string `json:"variableNames"`
	Discontinued  bool     `json:"discontinued"`
}

// TablesResponse is the table listing with its paging envelope.
type TablesResponse struct {
	Tables []TableInfo `json:"tables"`
	Page   struct {
		PageNumber int `json:"pageNumber"`
		PageSize   int `json:"pageSize"`
		TotalPages int `json:"totalPages"`
	} `json:"page"`
}

// ListTables fetches available tables matching the query.
func (c *Client) ListTables(ctx context.Context, q TableQuery) (*TablesResponse, error) {
	params := c.baseParams()
	if q.Query != "" {
		params.Set("query", q.Query)
	}
	if q.PastDays > 0 {
		params.Set("pastDays", strconv.Itoa(q.PastDays))
	}
	params.Set("includeDiscontinued", strconv.FormatBool(q.IncludeDiscontinued))
	params.Set("pageNumber", "1")
	params.Set("pageSize", strconv.Itoa(defaultPageSize))

	body, err := c.get(ctx, "/tables", params)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	var resp TablesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse tables response: %w", err)
	}
	return &resp, nil
}

// VariableValue is one selectable value of a table variable.
type VariableValue struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Variable is one dimension of a table: its code, display label, and
// ordered values.
type Variable struct {
	ID     string          `json:"id"`
	Label  string          `json:"label"`
	Type   string          `json:"type"`
	Values []VariableValue `json:"values"`
}

// TableMetadata is the variable structure of one table.
type TableMetadata struct {
	TableID   string
	Variables []Variable
}

// GetTableMetadata fetches the variables of a table.
func (c *Client) GetTableMetadata(ctx context.Context, tableID string) (*TableMetadata, error) {
	body, err := c.get(ctx, "/tables/"+tableID+"/metadata", c.baseParams())
	if err != nil {
		return nil, fmt.Errorf("fetch metadata for table %s: %w", tableID, err)
	}

	var raw struct {
		Variables []Variable `json:"variables"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse metadata for table %s: %w", tableID, err)
	}

	return &TableMetadata{TableID: tableID, Variables: raw.Variables}, nil
}

// Space converts the metadata into a dimension space covering every value
// of every variable, in metadata order.
func (m *TableMetadata) Space() (*partition.Space, error) {
	space, err := partition.NewSpace()
	if err != nil {
		return nil, err
	}
	for _, v := range m.Variables {
		codes := make([]string, len(v.Values))
		for i, val := range v.Values {
			codes[i] = val.Code
		}
		if err := space.Add(partition.Dimension{Code: v.ID, Values: codes}); err != nil {
			return nil, fmt.Errorf("table %s: %w", m.TableID, err)
		}
	}
	return space, nil
}

// ensureGate returns the client's pacing gate, creating it on first use.
// The gate persists for the client's lifetime so pacing carries across
// fetches. Interval and limit come from the explicit client config when
// set, otherwise from the service's advertised rate window.
func (c *Client) ensureGate(ctx context.Context) (*pacing.Gate, error) {
	c.gateMu.Lock()
	defer c.gateMu.Unlock()
	if c.gate != nil {
		return c.gate, nil
	}

	interval := c.config.PacingInterval
	if interval <= 0 {
		apiCfg, err := c.GetConfig(ctx)
		if err != nil {
			return nil, err
		}
		interval = pacing.IntervalFor(
			time.Duration(apiCfg.TimeWindow)*time.Second,
			apiCfg.MaxCallsPerTimeWindow,
			c.config.PacingMargin,
		)
	}

	gate, err := pacing.NewGate(interval, c.config.MaxConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create pacing gate: %w", err)
	}
	c.logger.Info().
		Dur("interval", interval).
		Int("concurrency", c.config.MaxConcurrency).
		Msg("Pacing gate initialized")
	c.gate = gate
	return gate, nil
}

// cellLimit resolves the per-request cell limit: the explicit config value
// when set, otherwise the service's maxDataCells.
func (c *Client) cellLimit(ctx context.Context) (int, error) {
	if c.config.CellLimit > 0 {
		return c.config.CellLimit, nil
	}
	apiCfg, err := c.GetConfig(ctx)
	if err != nil {
		return 0, err
	}
	if apiCfg.MaxDataCells < 1 {
		return 0, fmt.Errorf("api config advertises invalid maxDataCells %d", apiCfg.MaxDataCells)
	}
	return apiCfg.MaxDataCells, nil
}
