// Package partition splits a multi-dimensional table selection into
// sub-request configurations that respect the API's cell limit.
// It provides the batch-size optimizer, the value splitter, and the
// request-configuration enumerator as independently usable pure functions.
package partition

import (
	"fmt"
)

// Dimension is one categorical axis of a table selection: a variable code
// plus its ordered list of distinct value codes. Value order is significant
// and is preserved through batching.
type Dimension struct {
	Code   string
	Values []string
}

// Space is an ordered set of dimensions. Dimension order fixes the
// enumeration order of request configurations, so repeated calls with the
// same Space produce identical, reproducible request sequences.
type Space struct {
	dims  []Dimension
	index map[string]int
}

// NewSpace creates a Space from dimensions in the given order.
// Duplicate dimension codes are rejected.
func NewSpace(dims ...Dimension) (*Space, error) {
	s := &Space{
		dims:  make([]Dimension, 0, len(dims)),
		index: make(map[string]int, len(dims)),
	}
	for _, d := range dims {
		if err := s.Add(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a dimension to the space, preserving insertion order.
func (s *Space) Add(d Dimension) error {
	if d.Code == "" {
		return fmt.Errorf("dimension code cannot be empty")
	}
	if _, ok := s.index[d.Code]; ok {
		return fmt.Errorf("duplicate dimension code %q", d.Code)
	}
	s.index[d.Code] = len(s.dims)
	s.dims = append(s.dims, d)
	return nil
}

// Dimensions returns the dimensions in insertion order.
func (s *Space) Dimensions() []Dimension {
	return s.dims
}

// Len returns the number of dimensions.
func (s *Space) Len() int {
	return len(s.dims)
}

// Get returns the dimension with the given code.
func (s *Space) Get(code string) (Dimension, bool) {
	i, ok := s.index[code]
	if !ok {
		return Dimension{}, false
	}
	return s.dims[i], true
}

// TotalCells returns the size of the full cross-product of the space.
// A dimension with zero values makes the product zero.
func (s *Space) TotalCells() int {
	total := 1
	for _, d := range s.dims {
		total *= len(d.Values)
	}
	if len(s.dims) == 0 {
		return 0
	}
	return total
}

// BatchSizes maps a dimension code to its chosen batch size.
type BatchSizes map[string]int

// RequestCount returns the number of sub-requests the sizes produce for
// the space: the product over dimensions of ceil(count/size).
func (b BatchSizes) RequestCount(s *Space) int {
	count := 1
	for _, d := range s.dims {
		size := b[d.Code]
		if size <= 0 {
			return 0
		}
		count *= ceilDiv(len(d.Values), size)
	}
	return count
}

// Config is one sub-request: for every dimension, one contiguous batch of
// its values. Batches preserves the space's dimension order.
type Config struct {
	Batches []Batch
}

// Batch is a contiguous slice of one dimension's values.
type Batch struct {
	Code   string
	Values []string
}

// SplitValues splits values into contiguous batches of up to size elements.
// The last batch may be shorter. Concatenating the batches in order
// reproduces values exactly.
func SplitValues(values []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	n := ceilDiv(len(values), size)
	batches := make([][]string, 0, n)
	for i := 0; i < len(values); i += size {
		end := i + size
		if end > len(values) {
			end = len(values)
		}
		batches = append(batches, values[i:end:end])
	}
	return batches
}

// EnumerateConfigs forms every request configuration: the Cartesian product
// of each dimension's batch list, taking one batch per dimension. Dimensions
// iterate in space order, with the last dimension's batches varying fastest.
//
// A dimension with zero values yields zero configurations.
func EnumerateConfigs(space *Space, sizes BatchSizes) []Config {
	batched := make([][][]string, space.Len())
	total := 1
	for i, d := range space.dims {
		batched[i] = SplitValues(d.Values, sizes[d.Code])
		total *= len(batched[i])
	}
	if space.Len() == 0 || total == 0 {
		return nil
	}

	configs := make([]Config, 0, total)
	cursor := make([]int, space.Len())
	for {
		cfg := Config{Batches: make([]Batch, space.Len())}
		for i, d := range space.dims {
			cfg.Batches[i] = Batch{Code: d.Code, Values: batched[i][cursor[i]]}
		}
		configs = append(configs, cfg)

		// Advance the cursor, last dimension fastest.
		i := space.Len() - 1
		for i >= 0 {
			cursor[i]++
			if cursor[i] < len(batched[i]) {
				break
			}
			cursor[i] = 0
			i--
		}
		if i < 0 {
			return configs
		}
	}
}

// Cells returns the number of cells the configuration covers.
func (c Config) Cells() int {
	cells := 1
	for _, b := range c.Batches {
		cells *= len(b.Values)
	}
	return cells
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
