package predicate

// evaluate dispatches a single operator-object condition. $eq/$ne operate
// on any JSON type via structural equality; $gt/$lt/$gte/$lte require both
// sides to be numeric and return false rather than panicking on a type
// mismatch — the engine must stay robust against dirty data.
func evaluate(op string, fieldVal, targetVal interface{}) bool {
	switch op {
	case "$eq":
		return deepEqual(fieldVal, targetVal)
	case "$ne":
		return !deepEqual(fieldVal, targetVal)
	case "$gt":
		return compareF64(fieldVal, targetVal, func(a, b float64) bool { return a > b })
	case "$lt":
		return compareF64(fieldVal, targetVal, func(a, b float64) bool { return a < b })
	case "$gte":
		return compareF64(fieldVal, targetVal, func(a, b float64) bool { return a >= b })
	case "$lte":
		return compareF64(fieldVal, targetVal, func(a, b float64) bool { return a <= b })
	default:
		return false
	}
}

func compareF64(a, b interface{}, op func(x, y float64) bool) bool {
	af, aok := asF64(a)
	bf, bok := asF64(b)
	if !aok || !bok {
		return false
	}
	return op(af, bf)
}

func asF64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func deepEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !deepEqual(v, bvv) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case float64, int, int64:
		bf, bok := asF64(b)
		af, aok := asF64(a)
		return aok && bok && af == bf
	default:
		return a == b
	}
}
