package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("User")
	ErrEmailExists       = core.NewError(core.KindConflict, "DuplicateEmail", "User with this email already exists")
	ErrAdminSignup       = core.NewError(core.KindForbidden, "Forbidden", "admin accounts cannot be self-registered")
	ErrAdminFieldsDenied = core.NewError(core.KindForbidden, "Forbidden", "only admins can update these fields")
	ErrSelfDeactivation  = core.NewError(core.KindValidation, "SelfDeactivation", "You cannot delete your own account")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields and returns the matching page & total count.
		QueryUsers(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]User, int, error)
		CountUsers(ctx context.Context, filter QueryFilter) (int, error)
		// UpdateUser saves the mutable fields (profile, password, flags) of usr.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// RecordLoginFailure atomically increments the login attempts of a User and locks them until
		// lockUntil once maxAttempts is reached.
		RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (User, error)
		// RecordLoginSuccess resets login attempts, clears any lock and stamps the last login.
		RecordLoginSuccess(ctx context.Context, id string, at time.Time) (User, error)
		// ResetLoginAttempts clears lockout state without touching the last login.
		ResetLoginAttempts(ctx context.Context, id string) error
	}

	Options struct {
		PasswordHashCost int
		AllowAdminSignup bool
		AppName          string
		FrontendBaseURL  string
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		opts    Options
	}
)

func NewService(repo Repository, mailSvc core.EmailService, opts Options) *Service {
	if opts.PasswordHashCost <= 0 {
		opts.PasswordHashCost = DefaultPasswordHashCost
	}
	return &Service{repo: repo, mailSvc: mailSvc, opts: opts}
}

// NewServiceOptions extracts the user Options from conf.
func NewServiceOptions(conf *core.Config) Options {
	return Options{
		PasswordHashCost: conf.Auth.PasswordHashCost,
		AllowAdminSignup: conf.Auth.AllowAdminSignup,
		AppName:          conf.AppName,
		FrontendBaseURL:  conf.FrontendBaseURL,
	}
}

func (svc *Service) PasswordHashCost() int { return svc.opts.PasswordHashCost }

// Register creates a new active User out of validated nu.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.UserType == RoleAdmin && !svc.opts.AllowAdminSignup {
		return User{}, ErrAdminSignup
	}
	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, ErrEmailExists
	} else if errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}

	now := nowFunc().UTC()
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      nu.UserType,
		Gender:    nu.Gender,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password, svc.opts.PasswordHashCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.sendWelcomeMail(usr)
	return usr, nil
}

func (svc *Service) sendWelcomeMail(usr User) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Welcome to " + svc.opts.AppName,
		TemplateName: "welcome",
		TemplateData: map[string]interface{}{
			"FirstName": usr.FirstName,
			"UserType":  usr.Role,
			"Email":     usr.Email,
		},
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]User, int, error) {
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, opts)
}

// Update applies validated uu on usr. Only admins may change IsActive, FlightHours & Certificates.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser, asAdmin bool) (User, error) {
	if uu.HasAdminFields() && !asAdmin {
		return User{}, ErrAdminFieldsDenied
	}
	uu.apply(&usr)
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword sets the new password of usr once the current one is verified.
func (svc *Service) ChangePassword(ctx context.Context, usr User, pc PasswordChange) error {
	if err := usr.CheckPassword(pc.CurrentPassword); err != nil {
		return core.NewFieldError("currentPassword", "Current password is incorrect")
	}
	return svc.SetPassword(ctx, usr, pc.NewPassword)
}

// SetPassword hashes & saves pwd without any further check.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd, svc.opts.PasswordHashCost); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	if _, err := svc.repo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return nil
}

// Deactivate soft-deletes the User identified by id. actor cannot deactivate themselves.
func (svc *Service) Deactivate(ctx context.Context, actor User, id string) (User, error) {
	if actor.ID == id {
		return User{}, ErrSelfDeactivation
	}
	return svc.SetActive(ctx, id, false)
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetStudentActive is SetActive restricted to students.
func (svc *Service) SetStudentActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrNotFound
	}
	return svc.SetActive(ctx, id, active)
}

// Unlock clears the lockout state of the User with the given email.
func (svc *Service) Unlock(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return svc.repo.ResetLoginAttempts(ctx, usr.ID)
}
