package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core/auth"
	"github.com/trezcool/skytraining/core/enrollment"
)

type enrollmentApi struct {
	*server
}

func (s *server) registerEnrollmentAPI(g *echo.Group) {
	api := enrollmentApi{s}

	eg := g.Group("/enrollments", s.authed)
	eg.POST("", api.create, studentOnly)
	eg.GET("/my", api.mine, studentOnly)
	eg.GET("", api.list, adminOnly)
	eg.GET("/analytics/stats", api.stats, adminOnly)
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id/progress", api.updateProgress, adminOnly)
	eg.POST("/:id/payment", api.addPayment, adminOnly)
	eg.PUT("/:id/status", api.updateStatus, adminOnly)
	eg.POST("/:id/notes", api.addNote, adminOnly)
}

func (api enrollmentApi) create(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data enrollment.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.opts.EnrollmentSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return api.respond(ctx, http.StatusCreated, "Enrollment created successfully", enr)
}

func (api enrollmentApi) mine(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	c := ctx.Request().Context()
	enrs, err := api.opts.EnrollmentSvc.ListForStudent(c, usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing student enrollments")
	}
	details, err := api.opts.EnrollmentSvc.Describe(c, enrs, false /* withStudents */)
	if err != nil {
		return errors.Wrap(err, "describing enrollments")
	}
	for i := range details {
		details[i].Notes = details[i].PublicNotes()
	}
	return ok(ctx, echo.Map{"enrollments": details})
}

func (api enrollmentApi) list(ctx echo.Context) error {
	filter := enrollment.QueryFilter{PaymentStatus: ctx.QueryParam("paymentStatus")}
	if status := ctx.QueryParam("status"); status != "" {
		filter.Statuses = []string{status}
	}
	if courseID := ctx.QueryParam("courseId"); courseID != "" {
		filter.CourseIDs = []string{courseID}
	}
	if studentID := ctx.QueryParam("studentId"); studentID != "" {
		filter.StudentIDs = []string{studentID}
	}

	c := ctx.Request().Context()
	page := bindPage(ctx)
	enrs, total, err := api.opts.EnrollmentSvc.Query(c, filter, ctx.QueryParam("search"), page.Options())
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	details, err := api.opts.EnrollmentSvc.Describe(c, enrs, true /* withStudents */)
	if err != nil {
		return errors.Wrap(err, "describing enrollments")
	}
	return ok(ctx, echo.Map{
		"enrollments": details,
		"pagination":  newPagination(page, total).withTotal("totalEnrollments"),
	})
}

func (api enrollmentApi) retrieve(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	enr, err := api.opts.EnrollmentSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	if err = auth.RequireOwnerOrAdmin(usr, enr.StudentID); err != nil {
		return err
	}
	if !usr.IsAdmin() {
		enr.Notes = enr.PublicNotes()
	}
	return api.respond(ctx, http.StatusOK, "", enr)
}

func (api enrollmentApi) updateProgress(ctx echo.Context) error {
	var data enrollment.ProgressPatch
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ProgressPatch")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.opts.EnrollmentSvc.UpdateProgress(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return api.respond(ctx, http.StatusOK, "Progress updated successfully", enr)
}

func (api enrollmentApi) addPayment(ctx echo.Context) error {
	var data enrollment.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.opts.EnrollmentSvc.ApplyPayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return api.respond(ctx, http.StatusOK, "Payment added successfully", enr)
}

func (api enrollmentApi) updateStatus(ctx echo.Context) error {
	var data enrollment.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.opts.EnrollmentSvc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating enrollment status")
	}
	return api.respond(ctx, http.StatusOK, "Enrollment status updated successfully", enr)
}

func (api enrollmentApi) addNote(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	var data enrollment.NewNote
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err = data.Validate(api.opts.Validate); err != nil {
		return err
	}

	enr, err := api.opts.EnrollmentSvc.AddNote(ctx.Request().Context(), ctx.Param("id"), usr, data)
	if err != nil {
		return errors.Wrap(err, "adding note")
	}
	return api.respond(ctx, http.StatusOK, "Note added successfully", enr)
}

func (api enrollmentApi) stats(ctx echo.Context) error {
	stats, err := api.opts.ReportSvc.EnrollmentStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing enrollment stats")
	}
	return ok(ctx, stats)
}

// respond renders enr with its student & course summaries.
func (api enrollmentApi) respond(ctx echo.Context, code int, msg string, enr enrollment.Enrollment) error {
	details, err := api.opts.EnrollmentSvc.Describe(ctx.Request().Context(), []enrollment.Enrollment{enr}, true /* withStudents */)
	if err != nil {
		return errors.Wrap(err, "describing enrollment")
	}
	return success(ctx, code, msg, echo.Map{"enrollment": details[0]})
}
