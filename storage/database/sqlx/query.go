package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/trezcool/lecturepay/core"
)

// where accumulates AND-ed conditions written with ? placeholders.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// orderBy renders ords, always ending on id so pages are stable. Fields must be in allowed;
// money columns are cast so text-stored decimals sort by value.
func orderBy(ords []core.DBOrdering, allowed map[string]bool, money ...string) (string, error) {
	parts := make([]string, 0, len(ords)+1)
	var hasID bool
	for _, ord := range ords {
		if !allowed[ord.Field] {
			return "", core.NewFieldValidationError("ordering", "unknown field "+ord.Field)
		}
		col := ord.Field
		for _, m := range money {
			if m == col {
				col = "CAST(" + col + " AS NUMERIC)"
			}
		}
		hasID = hasID || ord.Field == "id"
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if !hasID {
		parts = append(parts, "id ASC")
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func limit(n int) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + strconv.Itoa(n)
}
