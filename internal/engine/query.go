package engine

import (
	"reflect"
	"sort"
)

// matches reports whether a document satisfies every filter in the query.
func matches(doc Document, q Query) bool {
	for _, f := range q.Filters {
		val, ok := doc[f.Field]
		if !ok {
			return false
		}
		if !equalValues(val, f.Value) {
			return false
		}
	}
	return true
}

// equalValues compares two document values. JSON decoding turns all numbers
// into float64, so numeric operands are normalized before comparison.
func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// sortDocs orders documents by the query's OrderBy field. RFC 3339
// timestamps are strings and therefore sort correctly as plain text.
// Documents missing the field sort last regardless of direction.
func sortDocs(docs []Document, q Query) {
	if q.OrderBy == "" {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		a, aok := docs[i][q.OrderBy]
		b, bok := docs[j][q.OrderBy]
		if !aok || !bok {
			return aok
		}
		less := compareValues(a, b) < 0
		if q.Descending {
			return !less && compareValues(a, b) != 0
		}
		return less
	})
}

func compareValues(a, b any) int {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	}
	return 0
}
