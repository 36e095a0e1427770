package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

var (
	// errors
	ErrInvalidCredentials = core.NewError(core.KindUnauthorized, "InvalidCredentials", "Invalid login credentials")
	ErrAccountLocked      = core.NewError(core.KindUnauthorized, "AccountLocked", "Account temporarily locked due to too many failed login attempts")
	ErrTokenInvalid       = core.NewError(core.KindUnauthorized, "TokenInvalid", "Invalid token.")
	ErrTokenExpired       = core.NewError(core.KindUnauthorized, "TokenExpired", "Token has expired.")
	ErrInvalidSession     = core.NewError(core.KindUnauthorized, "InvalidSession", "Invalid token. User not found or deactivated.")
	ErrUserTypeMismatch   = core.NewError(core.KindValidation, "UserTypeMismatch", "Invalid user type for this account")

	nowFunc = time.Now // mockable
)

type Config struct {
	SecretKey        []byte
	Issuer           string
	TokenTTL         time.Duration
	MaxLoginAttempts int
	LockDuration     time.Duration
}

func NewConfig(conf *core.Config) Config {
	return Config{
		SecretKey:        []byte(conf.SecretKey),
		Issuer:           conf.AppName,
		TokenTTL:         conf.Auth.JWTExpirationDelta,
		MaxLoginAttempts: conf.Auth.MaxLoginAttempts,
		LockDuration:     conf.Auth.LockDuration,
	}
}

type Service struct {
	users user.Repository
	conf  Config
}

func NewService(users user.Repository, conf Config) *Service {
	if conf.TokenTTL <= 0 {
		conf.TokenTTL = 7 * 24 * time.Hour
	}
	if conf.MaxLoginAttempts <= 0 {
		conf.MaxLoginAttempts = 5
	}
	if conf.LockDuration <= 0 {
		conf.LockDuration = 2 * time.Hour
	}
	return &Service{users: users, conf: conf}
}

// Authenticate checks the credentials of an active User and applies the lockout policy:
// MaxLoginAttempts consecutive failures lock the account for LockDuration, even for the right password.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (user.User, error) {
	usr, err := svc.users.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrInvalidCredentials
		}
		return user.User{}, errors.Wrap(err, "finding user by email")
	}
	if !usr.IsActive {
		return user.User{}, ErrInvalidCredentials
	}

	now := nowFunc().UTC()
	if usr.IsLocked(now) {
		return user.User{}, ErrAccountLocked
	}
	if !usr.LockUntil.IsZero() {
		// the lock window is over: start counting again
		if err = svc.users.ResetLoginAttempts(ctx, usr.ID); err != nil {
			return user.User{}, errors.Wrap(err, "resetting login attempts")
		}
	}

	if err = usr.CheckPassword(pwd); err != nil {
		if _, err = svc.users.RecordLoginFailure(ctx, usr.ID, svc.conf.MaxLoginAttempts, now.Add(svc.conf.LockDuration)); err != nil {
			return user.User{}, errors.Wrap(err, "recording login failure")
		}
		return user.User{}, ErrInvalidCredentials
	}

	usr, err = svc.users.RecordLoginSuccess(ctx, usr.ID, now)
	if err != nil {
		return user.User{}, errors.Wrap(err, "recording login success")
	}
	return usr, nil
}

// ResolveSession verifies token and loads its active User.
func (svc *Service) ResolveSession(ctx context.Context, token string) (user.User, error) {
	claims, err := svc.VerifyToken(token)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrInvalidSession
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, ErrInvalidSession
	}
	return usr, nil
}
