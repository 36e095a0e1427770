package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/skytraining/core"
)

var (
	pageParam      = "page"
	limitParam     = "limit"
	sortByParam    = "sortBy"
	sortOrderParam = "sortOrder"
)

// bindPage reads `page` & `limit`; missing or malformed values fall back to the defaults.
func bindPage(ctx echo.Context) core.Page {
	number, _ := strconv.Atoi(ctx.QueryParam(pageParam))
	size, _ := strconv.Atoi(ctx.QueryParam(limitParam))
	return core.NewPage(number, size)
}

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `sortBy` & `sortOrder` (asc|desc). Fields outside of sortable are ignored, in which case
// def is used.
func (ord *Ordering) Bind(ctx echo.Context, sortable []string, def core.DBOrdering) {
	field := strings.TrimSpace(ctx.QueryParam(sortByParam))
	for _, f := range sortable {
		if f == field {
			ascending := !strings.EqualFold(ctx.QueryParam(sortOrderParam), "desc")
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: ascending})
			return
		}
	}
	ord.Orderings = append(ord.Orderings, def)
}

// boolParam parses a boolean query param; nil when missing or malformed.
func boolParam(ctx echo.Context, name string) *bool {
	val, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &val
}
