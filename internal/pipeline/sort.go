package pipeline

import (
	"cmp"
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bizdash/internal/core"
)

// Direction of a sort.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection defaults anything unrecognised to Asc.
func ParseDirection(s string) Direction {
	if Direction(s) == Desc {
		return Desc
	}
	return Asc
}

// SortSpec is a field key and direction. An empty Field leaves input order.
type SortSpec struct {
	Field     string
	Direction Direction
}

// Toggle flips the direction when key is already the sort field and otherwise
// starts an ascending sort on key.
func (s SortSpec) Toggle(key string) SortSpec {
	if s.Field == key {
		if s.Direction == Desc {
			return SortSpec{Field: key, Direction: Asc}
		}
		return SortSpec{Field: key, Direction: Desc}
	}
	return SortSpec{Field: key, Direction: Asc}
}

func (s SortSpec) Key() string {
	if s.Field == "" {
		return "sort="
	}
	return "sort=" + s.Field + ":" + string(s.Direction)
}

// Sort returns a stably sorted copy of records. Nulls sort last in both
// directions; strings are compared with the collation rules of lang.
func Sort[R core.Fielder](records []R, spec SortSpec, lang language.Tag) []R {
	out := slices.Clone(records)
	if spec.Field == "" || len(out) < 2 {
		return out
	}

	coll := collate.New(lang)
	sign := 1
	if spec.Direction == Desc {
		sign = -1
	}

	slices.SortStableFunc(out, func(x, y R) int {
		a, b := x.Field(spec.Field), y.Field(spec.Field)
		switch {
		case a.IsNull() && b.IsNull():
			return 0
		case a.IsNull():
			return 1
		case b.IsNull():
			return -1
		}
		return sign * compareValues(a, b, coll)
	})
	return out
}

// compareValues orders two non-null values of the same kind. Mixed kinds are equal.
func compareValues(a, b core.Value, coll *collate.Collator) int {
	if a.Kind() != b.Kind() {
		return 0
	}
	switch a.Kind() {
	case core.KindDate:
		return a.Time().Compare(b.Time())
	case core.KindNumber:
		return cmp.Compare(a.Num(), b.Num())
	case core.KindString:
		return coll.CompareString(a.Str(), b.Str())
	case core.KindBool:
		switch {
		case a.Truth() == b.Truth():
			return 0
		case a.Truth():
			return 1
		default:
			return -1
		}
	}
	return 0
}
