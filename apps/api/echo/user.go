package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

var userDefaultOrdering = core.DBOrdering{Field: "createdAt"}

type userApi struct {
	*server
}

func (s *server) registerUserAPI(g *echo.Group) {
	api := userApi{s}

	ug := g.Group("/users", s.authed)
	ug.GET("/analytics/stats", api.stats, adminOnly)
	ug.GET("", api.list, adminOnly)
	ug.GET("/:id", api.retrieve, ownerOrAdminMiddleware)
	ug.PUT("/:id", api.update, ownerOrAdminMiddleware)
	ug.PUT("/:id/password", api.changePassword)
	ug.DELETE("/:id", api.destroy, adminOnly)
}

func (api userApi) list(ctx echo.Context) error {
	filter := user.QueryFilter{
		Search:   ctx.QueryParam("search"),
		IsActive: boolParam(ctx, "isActive"),
	}
	if role := ctx.QueryParam("userType"); role != "" {
		filter.Roles = []string{role}
	}
	filter.Clean()

	page := bindPage(ctx)
	users, total, err := api.opts.UserSvc.Query(ctx.Request().Context(), filter, page.Options(userDefaultOrdering))
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ok(ctx, echo.Map{
		"users":      users,
		"pagination": newPagination(page, total).withTotal("totalUsers"),
	})
}

func (api userApi) retrieve(ctx echo.Context) error {
	usr, err := api.opts.UserSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	return ok(ctx, echo.Map{"user": profile(usr)})
}

func (api userApi) update(ctx echo.Context) error {
	c := ctx.Request().Context()
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(api.opts.Validate); err != nil {
		return err
	}

	target, err := api.opts.UserSvc.GetByID(c, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	usr, err := api.opts.UserSvc.Update(c, target, data, isAdminRequest(ctx))
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return success(ctx, http.StatusOK, "Profile updated successfully", echo.Map{"user": profile(usr)})
}

func (api userApi) changePassword(ctx echo.Context) error {
	usr, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if usr.ID != ctx.Param("id") {
		return errNotOwner
	}

	var data user.PasswordChange
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordChange")
	}
	if err = data.Validate(api.opts.Validate, usr); err != nil {
		return err
	}
	if err = api.opts.UserSvc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return success(ctx, http.StatusOK, "Password changed successfully", nil)
}

func (api userApi) destroy(ctx echo.Context) error {
	actor, err := contextUser(ctx)
	if err != nil {
		return err
	}
	if _, err = api.opts.UserSvc.Deactivate(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return success(ctx, http.StatusOK, "User account deactivated successfully", nil)
}

func (api userApi) stats(ctx echo.Context) error {
	stats, err := api.opts.ReportSvc.UserStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing user stats")
	}
	return ok(ctx, stats)
}

// Profile is a User with its display name.
type Profile struct {
	user.User
	FullName string `json:"fullName"`
}

func profile(usr user.User) Profile {
	return Profile{User: usr, FullName: usr.FullName()}
}
