// Package predicate is the external query evaluator: filter, sort,
// project, update, count, validate over in-memory JSON-shaped documents.
// The collection controller treats it as a stateless, pure, thread-safe
// collaborator — callers pass in a snapshot, get a result back, never
// share mutable state with it.
//
// The boundary documented for this component is shaped for an FFI
// implementation (five functions, string in/string out); the design notes
// explicitly allow inlining it natively instead, which is what this
// package does, operating on parsed Go values rather than serialized JSON.
package predicate

import "sort"

type Document = map[string]interface{}

// Validate enforces a required field list and per-field {type, min, max,
// enum} constraints. It fails open (returns true) when the schema or
// document shape can't be interpreted, matching the original engine's
// defensive posture: a malformed schema must never crash an insert path.
func Validate(doc Document, schema Document) bool {
	if schema == nil {
		return true
	}

	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			field, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := doc[field]; !present {
				return false
			}
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	for field, rawRule := range properties {
		rule, ok := rawRule.(map[string]interface{})
		if !ok {
			continue
		}
		val, present := doc[field]
		if !present {
			continue
		}
		if !validateField(val, rule) {
			return false
		}
	}
	return true
}

func validateField(val interface{}, rule map[string]interface{}) bool {
	if wantType, ok := rule["type"].(string); ok {
		if !matchesType(val, wantType) {
			return false
		}
	}

	if n, ok := asF64(val); ok {
		if min, ok := rule["min"]; ok {
			if minF, ok := asF64(min); ok && n < minF {
				return false
			}
		}
		if max, ok := rule["max"]; ok {
			if maxF, ok := asF64(max); ok && n > maxF {
				return false
			}
		}
	}

	if enum, ok := rule["enum"].([]interface{}); ok {
		matched := false
		for _, e := range enum {
			if deepEqual(val, e) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

func matchesType(val interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		_, ok := asF64(val)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]interface{})
		return ok
	case "array":
		_, ok := val.([]interface{})
		return ok
	default:
		return true
	}
}

// Count returns the number of documents matching query.
func Count(docs []Document, query Document) int {
	n := 0
	for _, d := range docs {
		if matchesQuery(d, query) {
			n++
		}
	}
	return n
}

// Find filters, sorts, skips/limits, then projects, in that order.
// limit == 0 means unbounded. skip >= len(matched) returns an empty slice.
func Find(docs []Document, query, sortSpec, projection Document, limit, skip int) []Document {
	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matchesQuery(d, query) {
			matched = append(matched, d)
		}
	}

	if len(sortSpec) > 0 {
		sortDocuments(matched, sortSpec)
	}

	if skip < 0 {
		skip = 0
	}
	if limit < 0 {
		limit = 0
	}
	if skip >= len(matched) {
		return nil
	}
	end := len(matched)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	matched = matched[skip:end]

	result := make([]Document, len(matched))
	for i, d := range matched {
		result[i] = applyProjection(d, projection)
	}
	return result
}

// Update merges update's fields into every matching document and returns
// the entire new collection (matched and unmatched alike). Both a $set
// sub-object and direct top-level field assignment are supported; _id is
// never touched by either form.
func Update(docs []Document, query, update Document) []Document {
	fields := update
	if set, ok := update["$set"].(map[string]interface{}); ok {
		fields = set
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		if !matchesQuery(d, query) {
			result[i] = d
			continue
		}
		merged := make(Document, len(d)+len(fields))
		for k, v := range d {
			merged[k] = v
		}
		for k, v := range fields {
			if k == "_id" {
				continue
			}
			merged[k] = v
		}
		merged["_id"] = d["_id"]
		result[i] = merged
	}
	return result
}

// Delete returns the documents that do NOT match query — the remaining
// dataset after removing matches.
func Delete(docs []Document, query Document) []Document {
	result := make([]Document, 0, len(docs))
	for _, d := range docs {
		if !matchesQuery(d, query) {
			result = append(result, d)
		}
	}
	return result
}

func matchesQuery(doc Document, query Document) bool {
	for field, target := range query {
		val := doc[field]
		if sub, ok := target.(map[string]interface{}); ok && isOperatorObject(sub) {
			matchedAll := true
			for op, opTarget := range sub {
				if !evaluate(op, val, opTarget) {
					matchedAll = false
					break
				}
			}
			if !matchedAll {
				return false
			}
			continue
		}
		if !deepEqual(val, target) {
			return false
		}
	}
	return true
}

func isOperatorObject(m map[string]interface{}) bool {
	for k := range m {
		if len(k) == 0 || k[0] != '$' {
			return false
		}
	}
	return len(m) > 0
}

func applyProjection(doc Document, projection Document) Document {
	if len(projection) == 0 {
		return doc
	}

	excludeID := false
	included := map[string]bool{}
	hasInclude := false
	for field, spec := range projection {
		want := truthy(spec)
		if field == "_id" && !want {
			excludeID = true
			continue
		}
		if want {
			included[field] = true
			hasInclude = true
		}
	}

	out := make(Document)
	if hasInclude {
		for field := range included {
			if v, ok := doc[field]; ok {
				out[field] = v
			}
		}
		if !excludeID {
			if id, ok := doc["_id"]; ok {
				out["_id"] = id
			}
		}
		return out
	}

	// Exclusion-only projection: copy everything except excluded fields.
	for k, v := range doc {
		out[k] = v
	}
	if excludeID {
		delete(out, "_id")
	}
	for field, spec := range projection {
		if !truthy(spec) {
			delete(out, field)
		}
	}
	return out
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func sortDocuments(docs []Document, sortSpec Document) {
	keys := make([]string, 0, len(sortSpec))
	for k := range sortSpec {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic tie-break order across multiple keys

	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			dir := 1.0
			if n, ok := asF64(sortSpec[k]); ok && n == -1 {
				dir = -1.0
			}
			c := compareValues(docs[i][k], docs[j][k])
			if c != 0 {
				return dir*float64(c) < 0
			}
		}
		return false
	})
}

// compareValues returns -1, 0, or 1. Mismatched types compare equal
// rather than erroring, matching the original engine's tolerant ordering.
func compareValues(a, b interface{}) int {
	if af, aok := asF64(a); aok {
		if bf, bok := asF64(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			switch {
			case as < bs:
				return -1
			case as > bs:
				return 1
			default:
				return 0
			}
		}
		return 0
	}
	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			if ab == bb {
				return 0
			}
			if !ab && bb {
				return -1
			}
			return 1
		}
		return 0
	}
	return 0
}
