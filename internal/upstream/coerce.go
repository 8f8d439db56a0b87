package upstream

import (
	"math"
	"strconv"
)

// asFiniteNumber is the single numeric-coercion point used at every
// ingest boundary in this package, per the design note: upstream
// payloads mix numbers and numeric strings, and non-finite values must
// never survive past the boundary that is supposed to catch them.
func asFiniteNumber(x any) (float64, bool) {
	switch v := x.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case nil:
		return 0, false
	default:
		return 0, false
	}
}
