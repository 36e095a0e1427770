package inmemdb

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

var userComparators = comparators[user.User]{
	"firstName":   func(a, b user.User) int { return strings.Compare(a.FirstName, b.FirstName) },
	"lastName":    func(a, b user.User) int { return strings.Compare(a.LastName, b.LastName) },
	"email":       func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"userType":    func(a, b user.User) int { return strings.Compare(a.Role, b.Role) },
	"flightHours": func(a, b user.User) int { return cmp.Compare(a.FlightHours, b.FlightHours) },
	"createdAt":   func(a, b user.User) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt":   func(a, b user.User) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
	"lastLogin":   func(a, b user.User) int { return a.LastLogin.Compare(b.LastLogin) },
}

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) filter(qf user.QueryFilter) []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		if qf.Match(*u) {
			users = append(users, *u)
		}
	}
	return users
}

func (repo *userRepository) emailTaken(email, exceptID string) bool {
	for _, u := range repo.db.table {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(usr.Email, "") {
		return user.User{}, user.ErrEmailExists
	}
	usr.ID = newID()
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Email == email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, qf user.QueryFilter, opts core.QueryOptions) ([]user.User, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := repo.filter(qf)
	sortRecords(users, opts.Orderings, userComparators)
	return paginate(users, opts), len(users), nil
}

func (repo *userRepository) CountUsers(_ context.Context, qf user.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.filter(qf)), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr.ID) {
		return user.User{}, user.ErrEmailExists
	}
	// lockout state is only changed through the dedicated methods
	usr.LoginAttempts = orig.LoginAttempts
	usr.LockUntil = orig.LockUntil
	usr.CreatedAt = orig.CreatedAt
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockUntil time.Time) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.LoginAttempts++
	if usr.LoginAttempts >= maxAttempts {
		usr.LockUntil = lockUntil
	}
	return *usr, nil
}

func (repo *userRepository) RecordLoginSuccess(_ context.Context, id string, at time.Time) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.LoginAttempts = 0
	usr.LockUntil = time.Time{}
	usr.LastLogin = at
	return *usr, nil
}

func (repo *userRepository) ResetLoginAttempts(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	usr, ok := repo.db.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LoginAttempts = 0
	usr.LockUntil = time.Time{}
	return nil
}
