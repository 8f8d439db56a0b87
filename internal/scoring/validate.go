package scoring

import (
	"fmt"
	"math"

	"github.com/hyperalpha/traderscore/internal/domain"
)

const weightSumTolerance = 1e-6

// ValidateRanked checks the quantified invariants from the testable
// properties section: finite score/weight, weight in [0,1], the
// top-selectCount weight sum is either 0 or 1 within tolerance, and
// every entry past selectCount carries zero weight.
func ValidateRanked(entries []domain.RankedEntry, selectCount int) error {
	sum := 0.0
	for _, e := range entries {
		if !finite(e.Score) {
			return fmt.Errorf("entry %s: non-finite score", e.Address)
		}
		if e.Weight < 0 || e.Weight > 1 {
			return fmt.Errorf("entry %s: weight %f out of [0,1]", e.Address, e.Weight)
		}
		if e.Rank > selectCount && e.Weight != 0 {
			return fmt.Errorf("entry %s: rank %d > selectCount %d but weight %f != 0", e.Address, e.Rank, selectCount, e.Weight)
		}
		if e.Rank <= selectCount {
			sum += e.Weight
		}
	}
	if math.Abs(sum) > weightSumTolerance && math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("top-%d weight sum %f is neither 0 nor 1", selectCount, sum)
	}
	return nil
}
