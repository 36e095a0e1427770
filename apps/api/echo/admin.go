package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core/user"
)

type StudentStatus struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type adminApi struct {
	*server
}

func (s *server) registerAdminAPI(g *echo.Group) {
	api := adminApi{s}

	ag := g.Group("/admin", s.authed, adminOnly)
	ag.GET("/dashboard", api.dashboard)
	ag.GET("/students", api.students)
	ag.GET("/students/:id", api.student)
	ag.PUT("/students/:id/status", api.setStudentStatus)
	ag.GET("/analytics", api.analytics)
	ag.GET("/export/:type", api.export)
}

func (api adminApi) dashboard(ctx echo.Context) error {
	dashboard, err := api.opts.ReportSvc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ok(ctx, dashboard)
}

func (api adminApi) students(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		IsActive: boolParam(ctx, "isActive"),
	}
	filter.Clean()

	page := bindPage(ctx)
	students, total, err := api.opts.ReportSvc.Students(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	return ok(ctx, echo.Map{
		"students":   students,
		"pagination": newPagination(page, total).withTotal("totalStudents"),
	})
}

func (api adminApi) student(ctx echo.Context) error {
	detail, err := api.opts.ReportSvc.StudentDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student detail")
	}
	return ok(ctx, echo.Map{"student": detail})
}

func (api adminApi) setStudentStatus(ctx echo.Context) error {
	var data StudentStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentStatus")
	}
	if err := api.opts.Validate.Struct(data); err != nil {
		return err
	}

	student, err := api.opts.UserSvc.SetStudentActive(ctx.Request().Context(), ctx.Param("id"), *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting student status")
	}
	verb := "deactivated"
	if student.IsActive {
		verb = "activated"
	}
	return success(ctx, http.StatusOK, fmt.Sprintf("Student %s successfully", verb), echo.Map{"student": student})
}

func (api adminApi) analytics(ctx echo.Context) error {
	analytics, err := api.opts.ReportSvc.Analytics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing analytics")
	}
	return ok(ctx, analytics)
}

// export sends the whole collection as a JSON attachment.
func (api adminApi) export(ctx echo.Context) error {
	exp, err := api.opts.ReportSvc.Export(ctx.Request().Context(), ctx.Param("type"))
	if err != nil {
		return errors.Wrap(err, "exporting data")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename()))
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":     statusSuccess,
		"exportType": exp.Type,
		"count":      exp.Count,
		"timestamp":  exp.Timestamp,
		"data":       exp.Data,
	})
}
