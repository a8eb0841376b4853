package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/lecturepay/core"
)

const (
	orderingParam = "ordering"
	limitParam    = "limit"
)

// bindQueryOptions reads ?ordering=-field1,field2&limit=N.
func bindQueryOptions(ctx echo.Context) (core.QueryOptions, error) {
	var opts core.QueryOptions
	if val := ctx.QueryParam(orderingParam); val != "" {
		for _, field := range strings.Split(val, ",") {
			field = strings.TrimSpace(field)
			descending := strings.HasPrefix(field, "-")
			if descending {
				field = field[1:] // drop "-"
			}
			opts.Ordering = append(opts.Ordering, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
	limit, err := bindLimit(ctx, 0)
	opts.Limit = limit
	return opts, err
}

func bindLimit(ctx echo.Context, def int) (int, error) {
	val := ctx.QueryParam(limitParam)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, core.NewFieldValidationError(limitParam, "must be a positive integer")
	}
	return n, nil
}

// bindDay parses the optional YYYY-MM-DD query param name.
func bindDay(ctx echo.Context, name string) (time.Time, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return time.Time{}, nil
	}
	day, err := core.ParseDay(val)
	if err != nil {
		return time.Time{}, core.NewFieldValidationError(name, "must be a date (YYYY-MM-DD)")
	}
	return day, nil
}
