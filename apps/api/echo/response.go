package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/skytraining/core"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the envelope of every API response.
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	Total       int  `json:"-"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

func newPagination(page core.Page, total int) Pagination {
	totalPages := page.TotalPages(total)
	return Pagination{
		CurrentPage: page.Number,
		TotalPages:  totalPages,
		Total:       total,
		HasNextPage: page.Number < totalPages,
		HasPrevPage: page.Number > 1,
	}
}

// withTotal renders p with its total under `key` (e.g. "totalCourses").
func (p Pagination) withTotal(key string) echo.Map {
	return echo.Map{
		"currentPage": p.CurrentPage,
		"totalPages":  p.TotalPages,
		key:           p.Total,
		"hasNextPage": p.HasNextPage,
		"hasPrevPage": p.HasPrevPage,
	}
}

func success(ctx echo.Context, code int, message string, data interface{}) error {
	return ctx.JSON(code, Response{Status: statusSuccess, Message: message, Data: data})
}

func ok(ctx echo.Context, data interface{}) error {
	return success(ctx, http.StatusOK, "", data)
}
