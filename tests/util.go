package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/user"
)

// TestPasswordHashCost keeps bcrypt fast in tests.
const TestPasswordHashCost = 4

// NewValidator returns a validator with every app validator & english translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	firstName, lastName, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     "+1 555 0100",
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd, TestPasswordHashCost); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, firstName, email string, createdAt ...time.Time) user.User {
	t.Helper()
	return CreateUser(t, repo, firstName, "Student", email, "", user.RoleStudent, true, createdAt...)
}

func CreateAdmin(t *testing.T, repo user.Repository, firstName, email string) user.User {
	t.Helper()
	return CreateUser(t, repo, firstName, "Admin", email, "", user.RoleAdmin, true)
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	title, category, price string,
	priceNumeric float64,
	maxStudents int,
	status string,
	featured bool,
	createdAt ...time.Time,
) course.Course {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	c := course.Course{
		Title:        title,
		Description:  "Ground school and flight training for " + title,
		Duration:     "6 months",
		Price:        price,
		PriceNumeric: priceNumeric,
		Status:       status,
		Category:     category,
		Level:        "beginner",
		MaxStudents:  maxStudents,
		Tags:         []string{category},
		Featured:     featured,
		CreatedAt:    tstamp,
		UpdatedAt:    tstamp,
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}
