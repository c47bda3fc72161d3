package predicate

import "testing"

func TestEvaluate_EqNe(t *testing.T) {
	if !evaluate("$eq", "a", "a") {
		t.Error("$eq should match identical strings")
	}
	if evaluate("$eq", "a", "b") {
		t.Error("$eq should not match different strings")
	}
	if !evaluate("$ne", "a", "b") {
		t.Error("$ne should match different values")
	}
	if !evaluate("$eq", float64(1), float64(1)) {
		t.Error("$eq should match equal numbers")
	}
}

func TestEvaluate_NumericComparisons(t *testing.T) {
	cases := []struct {
		op       string
		a, b     interface{}
		expected bool
	}{
		{"$gt", float64(5), float64(3), true},
		{"$gt", float64(3), float64(5), false},
		{"$lt", float64(3), float64(5), true},
		{"$gte", float64(5), float64(5), true},
		{"$lte", float64(5), float64(5), true},
	}
	for _, c := range cases {
		got := evaluate(c.op, c.a, c.b)
		if got != c.expected {
			t.Errorf("evaluate(%s, %v, %v) = %v, want %v", c.op, c.a, c.b, got, c.expected)
		}
	}
}

func TestEvaluate_NumericComparisonOnNonNumberNeverPanics(t *testing.T) {
	ops := []string{"$gt", "$lt", "$gte", "$lte"}
	for _, op := range ops {
		if evaluate(op, "not-a-number", float64(5)) {
			t.Errorf("evaluate(%s) on a string operand should return false", op)
		}
		if evaluate(op, float64(5), map[string]interface{}{"x": 1}) {
			t.Errorf("evaluate(%s) against a non-numeric target should return false", op)
		}
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	if evaluate("$nope", "a", "a") {
		t.Error("unknown operator should never match")
	}
}

func TestDeepEqual_NestedStructures(t *testing.T) {
	a := map[string]interface{}{"x": float64(1), "y": []interface{}{"a", "b"}}
	b := map[string]interface{}{"x": float64(1), "y": []interface{}{"a", "b"}}
	if !deepEqual(a, b) {
		t.Error("structurally identical maps should be deepEqual")
	}

	c := map[string]interface{}{"x": float64(1), "y": []interface{}{"a", "c"}}
	if deepEqual(a, c) {
		t.Error("structurally different maps should not be deepEqual")
	}
}
