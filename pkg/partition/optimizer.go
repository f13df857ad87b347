package partition

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// MaxExhaustiveDimensions bounds the exhaustive batch-count search. The
// search space is the product over dimensions of their distinct batch-count
// options, which grows exponentially with the dimension count. Spaces with
// more dimensions fall back to greedy sizing, which is feasible but not
// guaranteed minimal.
const MaxExhaustiveDimensions = 8

// Errors returned by the optimizer.
var (
	// ErrLimitTooSmall is returned when the cell limit is not positive.
	ErrLimitTooSmall = errors.New("cell limit must be at least 1")

	// ErrNoFeasibleSizes is returned when no batch-size combination
	// satisfies the cell-limit constraint.
	ErrNoFeasibleSizes = errors.New("no batch-size combination satisfies the cell limit")
)

// sizeOption is one usable batch count for a dimension, paired with the
// largest batch size that yields it. For a fixed batch count, a larger size
// contributes the same request count but never more cells per request than
// a smaller count would allow, so only the largest size per count matters.
type sizeOption struct {
	batches int
	size    int
}

// OptimalBatchSizes chooses a batch size per dimension so that the number
// of sub-requests, the product over dimensions of ceil(count/size), is
// minimal subject to the product of the sizes not exceeding limit.
//
// The search enumerates combinations of per-dimension batch counts and
// stops as soon as one reaches the theoretical lower bound
// ceil(totalCells/limit). Above MaxExhaustiveDimensions dimensions the
// exhaustive search is skipped in favor of GreedyBatchSizes.
func OptimalBatchSizes(space *Space, limit int) (BatchSizes, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLimitTooSmall, limit)
	}

	sizes := make(BatchSizes, space.Len())
	total := space.TotalCells()

	// A zero-size dimension empties the whole cross-product: nothing to
	// request. Every dimension still gets a valid size so the assignment
	// round-trips through the splitter.
	if total == 0 {
		for _, d := range space.dims {
			sizes[d.Code] = max(len(d.Values), 1)
		}
		return sizes, nil
	}

	lowerBound := ceilDiv(total, limit)
	if lowerBound == 1 {
		// The full selection fits in one request.
		for _, d := range space.dims {
			sizes[d.Code] = len(d.Values)
		}
		return sizes, nil
	}

	if space.Len() > MaxExhaustiveDimensions {
		log.Debug().
			Int("dimensions", space.Len()).
			Int("max_exhaustive", MaxExhaustiveDimensions).
			Msg("Dimension count exceeds exhaustive search bound, using greedy sizing")
		return GreedyBatchSizes(space, limit)
	}

	options := batchCountOptions(space, limit)

	search := &sizeSearch{
		space:      space,
		limit:      limit,
		lowerBound: lowerBound,
		options:    options,
		best:       nil,
		bestCount:  0,
	}
	search.explore(0, 1, make([]sizeOption, space.Len()))

	if search.best == nil {
		return nil, fmt.Errorf("%w: limit %d, %d dimensions", ErrNoFeasibleSizes, limit, space.Len())
	}

	for i, d := range space.dims {
		sizes[d.Code] = search.best[i].size
	}
	return sizes, nil
}

// batchCountOptions builds, per dimension, its distinct batch counts with
// the largest size producing each, ordered by ascending batch count so the
// search reaches low request counts first.
func batchCountOptions(space *Space, limit int) [][]sizeOption {
	options := make([][]sizeOption, space.Len())
	for i, d := range space.dims {
		n := len(d.Values)
		maxSize := min(n, limit)
		// Walk sizes downward: batch counts come out ascending, and the
		// first size seen for a count is the largest size producing it.
		opts := make([]sizeOption, 0, maxSize)
		lastCount := 0
		for size := maxSize; size >= 1; size-- {
			k := ceilDiv(n, size)
			if k == lastCount {
				continue
			}
			lastCount = k
			opts = append(opts, sizeOption{batches: k, size: size})
		}
		options[i] = opts
	}
	return options
}

type sizeSearch struct {
	space      *Space
	limit      int
	lowerBound int
	options    [][]sizeOption
	best       []sizeOption
	bestCount  int
	done       bool
}

// explore walks the Cartesian product of batch-count options depth-first,
// pruning branches whose running request count already matches or exceeds
// the best found, and stopping outright once the lower bound is reached.
func (s *sizeSearch) explore(dim, runningCount int, picked []sizeOption) {
	if s.done {
		return
	}
	if s.best != nil && runningCount >= s.bestCount {
		// Remaining dimensions can only multiply the count by >= 1.
		return
	}
	if dim == len(s.options) {
		if runningCount < s.lowerBound {
			return
		}
		sizeProduct := 1
		for _, o := range picked {
			sizeProduct *= o.size
		}
		if sizeProduct > s.limit {
			return
		}
		s.best = append([]sizeOption(nil), picked...)
		s.bestCount = runningCount
		if runningCount == s.lowerBound {
			s.done = true
		}
		return
	}
	for _, o := range s.options[dim] {
		picked[dim] = o
		s.explore(dim+1, runningCount*o.batches, picked)
		if s.done {
			return
		}
	}
}

// GreedyBatchSizes assigns sizes left to right, giving each dimension the
// largest size the remaining cell budget allows. The result always
// satisfies the limit but may need more requests than the optimum; it is
// the documented fallback for high-dimensional spaces.
func GreedyBatchSizes(space *Space, limit int) (BatchSizes, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrLimitTooSmall, limit)
	}
	sizes := make(BatchSizes, space.Len())
	budget := limit
	for _, d := range space.dims {
		n := len(d.Values)
		if n == 0 {
			sizes[d.Code] = 1
			continue
		}
		size := n
		if budget < size {
			size = budget
		}
		sizes[d.Code] = size
		budget /= size
	}
	return sizes, nil
}
