package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
)

const allStatuses = "all"

var courseDefaultOrdering = core.DBOrdering{Field: "createdAt"}

// CourseResponse adds the derived availability fields to a Course.
type CourseResponse struct {
	course.Course
	IsAvailable          bool    `json:"isAvailable"`
	EnrollmentPercentage float64 `json:"enrollmentPercentage"`
}

func courseResponse(c course.Course) CourseResponse {
	return CourseResponse{Course: c, IsAvailable: c.IsAvailable(), EnrollmentPercentage: c.EnrollmentPercentage()}
}

func courseResponses(courses []course.Course) []CourseResponse {
	resp := make([]CourseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, courseResponse(c))
	}
	return resp
}

type courseApi struct {
	*server
}

func (s *server) registerCourseAPI(g *echo.Group) {
	api := courseApi{s}

	cg := g.Group("/courses")
	cg.GET("", api.list, s.optionalAuth)
	cg.GET("/featured/list", api.featured)
	cg.GET("/category/:category", api.byCategory)
	cg.GET("/analytics/stats", api.stats, s.authed, adminOnly)
	cg.GET("/:id", api.retrieve, s.optionalAuth)
	cg.POST("", api.create, s.authed, adminOnly)
	cg.PUT("/:id", api.update, s.authed, adminOnly)
	cg.DELETE("/:id", api.destroy, s.authed, adminOnly)
}

func (api courseApi) list(ctx echo.Context) error {
	filter := course.QueryFilter{
		Category: ctx.QueryParam("category"),
		Level:    ctx.QueryParam("level"),
		Featured: boolParam(ctx, "featured"),
		Search:   ctx.QueryParam("search"),
	}
	// anonymous users & students only browse the active catalog
	switch status := ctx.QueryParam("status"); {
	case !isAdminRequest(ctx) || status == "":
		filter.Statuses = []string{course.StatusActive}
	case status != allStatuses:
		filter.Statuses = []string{status}
	}

	var ord Ordering
	ord.Bind(ctx, course.SortableFields, courseDefaultOrdering)
	page := bindPage(ctx)

	courses, total, err := api.opts.CourseSvc.Query(ctx.Request().Context(), filter, page.Options(ord.Orderings...))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ok(ctx, echo.Map{
		"courses":    courseResponses(courses),
		"pagination": newPagination(page, total).withTotal("totalCourses"),
	})
}

func (api courseApi) featured(ctx echo.Context) error {
	courses, err := api.opts.CourseSvc.Featured(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing featured courses")
	}
	return ok(ctx, echo.Map{"courses": courseResponses(courses)})
}

func (api courseApi) byCategory(ctx echo.Context) error {
	category := ctx.Param("category")
	courses, err := api.opts.CourseSvc.ByCategory(ctx.Request().Context(), category)
	if err != nil {
		return errors.Wrap(err, "listing courses by category")
	}
	return ok(ctx, echo.Map{"courses": courseResponses(courses), "category": category})
}

func (api courseApi) retrieve(ctx echo.Context) error {
	c, err := api.opts.CourseSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if !c.IsActive() && !isAdminRequest(ctx) {
		return course.ErrNotFound
	}
	return ok(ctx, echo.Map{"course": courseResponse(c)})
}

func (api courseApi) create(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	c, err := api.opts.CourseSvc.Create(ctx.Request().Context(), data, usr)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return success(ctx, http.StatusCreated, "Course created successfully", echo.Map{"course": courseResponse(c)})
}

func (api courseApi) update(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data course.UpdateCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	c, err := api.opts.CourseSvc.Update(ctx.Request().Context(), ctx.Param("id"), data, usr)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return success(ctx, http.StatusOK, "Course updated successfully", echo.Map{"course": courseResponse(c)})
}

func (api courseApi) destroy(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if _, err = api.opts.CourseSvc.Deactivate(ctx.Request().Context(), ctx.Param("id"), usr); err != nil {
		return errors.Wrap(err, "deactivating course")
	}
	return success(ctx, http.StatusOK, "Course deactivated successfully", nil)
}

func (api courseApi) stats(ctx echo.Context) error {
	stats, err := api.opts.ReportSvc.CourseStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing course stats")
	}
	return ok(ctx, stats)
}
