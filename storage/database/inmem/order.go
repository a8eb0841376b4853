package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
)

// fieldFunc extracts an orderable value (string, int, time.Time or decimal.Decimal) by field name.
type fieldFunc func(field string) interface{}

func compare(a, b interface{}) int {
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case int:
		y := b.(int)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case time.Time:
		y := b.(time.Time)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	case decimal.Decimal:
		return x.Cmp(b.(decimal.Decimal))
	}
	return 0
}

// sortBy sorts n items by ords; get returns the field accessor of item i.
func sortBy(n int, swap func(i, j int), get func(i int) fieldFunc, ords []core.DBOrdering) {
	sort.Sort(&sorter{n: n, swap: swap, get: get, ords: ords})
}

type sorter struct {
	n    int
	swap func(i, j int)
	get  func(i int) fieldFunc
	ords []core.DBOrdering
}

func (s *sorter) Len() int      { return s.n }
func (s *sorter) Swap(i, j int) { s.swap(i, j) }
func (s *sorter) Less(i, j int) bool {
	fi, fj := s.get(i), s.get(j)
	for _, ord := range s.ords {
		c := compare(fi(ord.Field), fj(ord.Field))
		if c == 0 {
			continue
		}
		if ord.Ascending {
			return c < 0
		}
		return c > 0
	}
	return false
}

func limit(n, max int) int {
	if max > 0 && max < n {
		return max
	}
	return n
}
