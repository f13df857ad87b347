package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/statwerk/pxweb-client/pkg/pacing"
	"github.com/statwerk/pxweb-client/pkg/partition"
	"github.com/statwerk/pxweb-client/pkg/query"
	"github.com/statwerk/pxweb-client/pkg/table"
)

// Submitter performs one sub-request and returns its tabular fragment.
// Implementations may retry internally; FetchAll treats any returned error
// as fatal for the whole fetch.
type Submitter interface {
	Submit(ctx context.Context, cfg partition.Config) ([]byte, error)
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(ctx context.Context, cfg partition.Config) ([]byte, error)

// Submit implements Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, cfg partition.Config) ([]byte, error) {
	return f(ctx, cfg)
}

// FetchAll retrieves the full cross-product of the dimension space as one
// combined table. The space is partitioned into sub-requests under the
// cell limit, each sub-request passes through the pacing gate, and the
// fragments are reassembled in submission order.
//
// Any sub-request failure fails the whole fetch; fragments already
// received are discarded. A partial statistical dataset is worse than
// none.
func FetchAll(ctx context.Context, submitter Submitter, gate *pacing.Gate, space *partition.Space, cellLimit int) (*table.Table, error) {
	if space.TotalCells() == 0 {
		// Nothing to select: no requests are issued, so no header is
		// obtainable. Callers get an empty table rather than an error.
		return &table.Table{}, nil
	}

	sizes, err := partition.OptimalBatchSizes(space, cellLimit)
	if err != nil {
		return nil, fmt.Errorf("partition selection: %w", err)
	}

	configs := partition.EnumerateConfigs(space, sizes)
	pxFetchRequests.Observe(float64(len(configs)))

	fragments, err := fetchFragments(ctx, submitter, gate, configs)
	if err != nil {
		return nil, err
	}

	combined, err := table.Combine(fragments)
	if err != nil {
		return nil, fmt.Errorf("combine fragments: %w", err)
	}
	return combined, nil
}

// fetchFragments issues every configuration through the gate and collects
// fragments indexed by submission order. Completion order is unordered up
// to the gate's concurrency; the index buffer restores submission order
// for the combiner.
func fetchFragments(ctx context.Context, submitter Submitter, gate *pacing.Gate, configs []partition.Config) ([][]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Each goroutine writes only its own index; no lock needed.
	fragments := make([][]byte, len(configs))
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func(i int, cfg partition.Config) {
			defer wg.Done()

			if err := gate.Acquire(ctx); err != nil {
				reportErr(errCh, err)
				return
			}
			defer gate.Release()

			fragment, err := submitter.Submit(ctx, cfg)
			if err != nil {
				reportErr(errCh, fmt.Errorf("sub-request %d/%d: %w", i+1, len(configs), err))
				cancel()
				return
			}
			fragments[i] = fragment
		}(i, cfg)
	}
	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	return fragments, nil
}

// reportErr records the first error; later ones are dropped.
func reportErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
}

// FetchOptions adjusts a table data fetch.
type FetchOptions struct {
	// OutputFormat of the data response. Defaults to csv2.
	OutputFormat string

	// Selection restricts variables to subsets of their values. Keys and
	// values match variable/value codes or labels after normalization
	// (trim, case-fold, space removal). Variables absent from the map keep
	// all their values. A nil map selects everything.
	Selection map[string][]string
}

// FetchTableData fetches the complete data of a table (or the subset given
// by opts.Selection) as one combined CSV table, regardless of how many
// sub-requests the service's cell limit forces.
func (c *Client) FetchTableData(ctx context.Context, tableID string, opts FetchOptions) (*table.Table, error) {
	start := time.Now()

	meta, err := c.GetTableMetadata(ctx, tableID)
	if err != nil {
		return nil, err
	}

	space, err := c.selectionSpace(meta, opts.Selection)
	if err != nil {
		return nil, err
	}

	limit, err := c.cellLimit(ctx)
	if err != nil {
		return nil, err
	}

	gate, err := c.ensureGate(ctx)
	if err != nil {
		return nil, err
	}

	format := opts.OutputFormat
	if format == "" {
		format = DefaultOutputFormat
	}

	c.logger.Info().
		Str("table_id", tableID).
		Int("cells", space.TotalCells()).
		Int("cell_limit", limit).
		Msg("Starting table fetch")

	combined, err := FetchAll(ctx, &dataSubmitter{client: c, tableID: tableID, format: format}, gate, space, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch table %s: %w", tableID, err)
	}

	c.logger.Info().
		Str("table_id", tableID).
		Int("rows", combined.RowCount()).
		Dur("duration", time.Since(start)).
		Msg("Table fetch complete")

	return combined, nil
}

// selectionSpace builds the dimension space for a fetch: every variable in
// metadata order, each carrying either its full value list or the subset
// the selection filters resolve to.
func (c *Client) selectionSpace(meta *TableMetadata, selection map[string][]string) (*partition.Space, error) {
	if len(selection) == 0 {
		return meta.Space()
	}

	// Resolve filter keys to variable codes up front so unknown filters
	// fail the fetch instead of silently selecting everything.
	byCode := make(map[string][]string, len(selection))
	for filter, values := range selection {
		v, err := meta.FindVariable(filter)
		if err != nil {
			return nil, err
		}
		byCode[v.ID] = values
	}

	space, err := partition.NewSpace()
	if err != nil {
		return nil, err
	}
	for _, v := range meta.Variables {
		filters, ok := byCode[v.ID]
		var codes []string
		if !ok {
			codes = make([]string, len(v.Values))
			for i, val := range v.Values {
				codes[i] = val.Code
			}
		} else {
			codes = make([]string, 0, len(filters))
			for _, filter := range filters {
				val, err := v.FindValue(filter)
				if err != nil {
					return nil, err
				}
				codes = append(codes, val.Code)
			}
		}
		if err := space.Add(partition.Dimension{Code: v.ID, Values: codes}); err != nil {
			return nil, err
		}
	}
	return space, nil
}

// dataSubmitter posts one selection payload to the table's data endpoint.
type dataSubmitter struct {
	client  *Client
	tableID string
	format  string
}

// Submit implements Submitter.
func (s *dataSubmitter) Submit(ctx context.Context, cfg partition.Config) ([]byte, error) {
	payload, err := query.BuildSelection(cfg).Marshal()
	if err != nil {
		return nil, err
	}

	params := s.client.baseParams()
	params.Set("outputFormat", s.format)

	return s.client.post(ctx, "/tables/"+s.tableID+"/data", params, payload)
}
