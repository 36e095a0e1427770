package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/auth"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/user"
)

const (
	contextUserKey = "user"
	bearerPrefix   = "Bearer "
)

// Auth Middlewares

// tokenMiddleware resolves the session User of the bearer token. With optional set, requests without
// a token go through anonymously; an invalid token is always rejected.
func tokenMiddleware(svc *auth.Service, optional bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) || strings.TrimSpace(header[len(bearerPrefix):]) == "" {
				if optional {
					return next(ctx)
				}
				return errMissingToken
			}

			usr, err := svc.ResolveSession(ctx.Request().Context(), strings.TrimSpace(header[len(bearerPrefix):]))
			if err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// roleMiddleware only lets through Users with any of roles. It must run after tokenMiddleware.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := contextUser(ctx)
			if err != nil {
				return err
			}
			if err = auth.RequireRole(usr, roles...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

var (
	adminOnly   = roleMiddleware(user.RoleAdmin)
	studentOnly = roleMiddleware(user.RoleStudent)
)

// ownerOrAdminMiddleware lets through admins and the User whose ID is the `:id` path param.
func ownerOrAdminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := contextUser(ctx)
		if err != nil {
			return err
		}
		if err = auth.RequireOwnerOrAdmin(usr, ctx.Param("id")); err != nil {
			return err
		}
		return next(ctx)
	}
}

func contextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errors.WithStack(errUsrNotInCtx)
}

// optionalContextUser returns the session User, if any.
func optionalContextUser(ctx echo.Context) (user.User, bool) {
	usr, ok := ctx.Get(contextUserKey).(user.User)
	return usr, ok
}

func isAdminRequest(ctx echo.Context) bool {
	usr, ok := optionalContextUser(ctx)
	return ok && usr.IsAdmin()
}

// Auth API

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
		UserType string `json:"userType" validate:"required,oneof=student admin"`
	}

	// EnrolledCourse is the summary of an enrollment attached to the session User.
	EnrolledCourse struct {
		CourseID          string    `json:"courseId"`
		CourseName        string    `json:"courseName"`
		CourseDescription string    `json:"courseDescription,omitempty"`
		Duration          string    `json:"duration,omitempty"`
		Price             string    `json:"price,omitempty"`
		Status            string    `json:"status"`
		EnrollmentDate    time.Time `json:"enrollmentDate"`
		Progress          float64   `json:"progress"`
		PaymentStatus     string    `json:"paymentStatus"`
	}

	UserResponse struct {
		user.User
		FullName        string           `json:"fullName"`
		EnrolledCourses []EnrolledCourse `json:"enrolledCourses"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	lr.UserType = core.CleanString(lr.UserType, true /* lower */)
	return validate.Struct(lr)
}

type authApi struct {
	*server
}

func (s *server) registerAuthAPI(g *echo.Group) {
	api := authApi{s}

	ag := g.Group("/auth")
	ag.POST("/register", api.register)
	ag.POST("/login", api.login)
	ag.GET("/me", api.me, s.authed)
	ag.POST("/logout", api.logout, s.authed)
	ag.POST("/refresh", api.refresh, s.authed)
}

func (api authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	usr, err := api.opts.UserSvc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := api.opts.AuthSvc.IssueToken(usr.ID)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}

	return success(ctx, http.StatusCreated, "User registered successfully", echo.Map{
		"user":  UserResponse{User: usr, FullName: usr.FullName(), EnrolledCourses: []EnrolledCourse{}},
		"token": token,
	})
}

func (api authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	usr, err := api.opts.AuthSvc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	api.metrics.observeLogin(err)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if usr.Role != data.UserType {
		return auth.ErrUserTypeMismatch
	}
	token, err := api.opts.AuthSvc.IssueToken(usr.ID)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}

	resp, err := api.userResponse(ctx, usr)
	if err != nil {
		return err
	}
	return success(ctx, http.StatusOK, "Login successful", echo.Map{"user": resp, "token": token})
}

func (api authApi) me(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	resp, err := api.userResponse(ctx, usr)
	if err != nil {
		return err
	}
	return ok(ctx, echo.Map{"user": resp})
}

func (api authApi) logout(ctx echo.Context) error {
	// tokens are stateless: the client drops it
	return success(ctx, http.StatusOK, "Logout successful", nil)
}

func (api authApi) refresh(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	token, err := api.opts.AuthSvc.IssueToken(usr.ID)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}
	return success(ctx, http.StatusOK, "Token refreshed successfully", echo.Map{"token": token})
}

// userResponse attaches the enrolled courses of students to usr.
func (s *server) userResponse(ctx echo.Context, usr user.User) (UserResponse, error) {
	resp := UserResponse{User: usr, FullName: usr.FullName(), EnrolledCourses: []EnrolledCourse{}}
	if !usr.IsStudent() {
		return resp, nil
	}

	c := ctx.Request().Context()
	enrs, err := s.opts.EnrollmentSvc.ListForStudent(c, usr.ID)
	if err != nil {
		return resp, errors.Wrap(err, "listing student enrollments")
	}
	details, err := s.opts.EnrollmentSvc.Describe(c, enrs, false /* withStudents */)
	if err != nil {
		return resp, errors.Wrap(err, "describing enrollments")
	}
	resp.EnrolledCourses = enrolledCourses(details)
	return resp, nil
}

func enrolledCourses(details []enrollment.Detail) []EnrolledCourse {
	courses := make([]EnrolledCourse, 0, len(details))
	for _, d := range details {
		ec := EnrolledCourse{
			CourseID:       d.CourseID,
			Status:         d.Status,
			EnrollmentDate: d.EnrollmentDate,
			Progress:       d.Progress.OverallProgress,
			PaymentStatus:  d.Payment.PaymentStatus,
		}
		if d.Course != nil {
			ec.CourseName = d.Course.Title
			ec.CourseDescription = d.Course.Description
			ec.Duration = d.Course.Duration
			ec.Price = d.Course.Price
		}
		courses = append(courses, ec)
	}
	return courses
}
