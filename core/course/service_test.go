package course_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/user"
	"github.com/trezcool/skytraining/storage/database/inmem"
	"github.com/trezcool/skytraining/tests"
)

type enrollmentCounterMock map[string]int

func (m enrollmentCounterMock) CountActiveEnrollments(_ context.Context, courseID string) (int, error) {
	return m[courseID], nil
}

func setup(t *testing.T) (*course.Service, course.Repository, enrollmentCounterMock) {
	t.Helper()
	db := inmemdb.Open()
	repo := inmemdb.NewCourseRepository(db)
	counter := make(enrollmentCounterMock)
	return course.NewService(repo, counter), repo, counter
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		price  string
		want   float64
		wantOk bool
	}{
		{price: "$8,500", want: 8500, wantOk: true},
		{price: "12000", want: 12000, wantOk: true},
		{price: "$ 1,234.56", want: 1234.56, wantOk: true},
		{price: "Contact us", wantOk: false},
		{price: "-$100", wantOk: false},
		{price: "", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			got, ok := course.ParsePrice(tt.price)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewCourse_Validate(t *testing.T) {
	validate := validator.New()
	validNew := func() course.NewCourse {
		return course.NewCourse{
			Title:       "  Private Pilot License ",
			Description: "Learn to fly single engine aircraft",
			Duration:    "6 months",
			Price:       "$8,500",
			Category:    "License",
			Level:       "beginner",
		}
	}

	nc := validNew()
	require.NoError(t, nc.Validate(validate))
	assert.Equal(t, "Private Pilot License", nc.Title)
	assert.Equal(t, "license", nc.Category)

	nc = validNew()
	nc.Price = "Contact us"
	err := nc.Validate(validate)
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	num := 9000.0
	nc.PriceNumeric = &num
	assert.NoError(t, nc.Validate(validate))

	nc = validNew()
	nc.Category = "lol"
	assert.Error(t, nc.Validate(validate))
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setup(t)
	admin := user.User{ID: "admin-1", Role: user.RoleAdmin}

	crs, err := svc.Create(ctx, course.NewCourse{
		Title:       "Private Pilot License",
		Description: "Learn to fly single engine aircraft",
		Duration:    "6 months",
		Price:       "$8,500",
		Category:    "license",
		Level:       "beginner",
	}, admin)
	require.NoError(t, err)
	assert.NotEmpty(t, crs.ID)
	assert.Equal(t, 8500.0, crs.PriceNumeric)
	assert.Equal(t, course.StatusActive, crs.Status)
	assert.Equal(t, course.DefaultMaxStudents, crs.MaxStudents)
	assert.Zero(t, crs.CurrentEnrollments)
	assert.Equal(t, admin.ID, crs.CreatedBy)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)
	admin := user.User{ID: "admin-1", Role: user.RoleAdmin}
	crs := testutil.CreateCourse(t, repo, "Private Pilot License", "license", "$8,500", 8500, 2, course.StatusActive, false)
	_, err := repo.ReserveSeat(ctx, crs.ID, crs.CreatedAt)
	require.NoError(t, err)
	_, err = repo.ReserveSeat(ctx, crs.ID, crs.CreatedAt)
	require.NoError(t, err)

	strPtr := func(s string) *string { return &s }
	intPtr := func(i int) *int { return &i }

	t.Run("price change recomputes priceNumeric", func(t *testing.T) {
		got, err := svc.Update(ctx, crs.ID, course.UpdateCourse{Price: strPtr("$9,250")}, admin)
		require.NoError(t, err)
		assert.Equal(t, "$9,250", got.Price)
		assert.Equal(t, 9250.0, got.PriceNumeric)
		assert.Equal(t, admin.ID, got.LastModifiedBy)
		assert.Equal(t, 2, got.CurrentEnrollments)
	})

	t.Run("maxStudents below current enrollments", func(t *testing.T) {
		_, err := svc.Update(ctx, crs.ID, course.UpdateCourse{MaxStudents: intPtr(1)}, admin)
		assert.Equal(t, core.KindValidation, core.KindOf(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.Update(ctx, "lol", course.UpdateCourse{}, admin)
		assert.Equal(t, course.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Deactivate(t *testing.T) {
	ctx := context.Background()
	svc, repo, counter := setup(t)
	admin := user.User{ID: "admin-1", Role: user.RoleAdmin}
	busy := testutil.CreateCourse(t, repo, "Private Pilot License", "license", "$8,500", 8500, 5, course.StatusActive, false)
	idle := testutil.CreateCourse(t, repo, "Instrument Rating", "rating", "$9,000", 9000, 5, course.StatusActive, false)
	counter[busy.ID] = 1

	_, err := svc.Deactivate(ctx, busy.ID, admin)
	assert.Equal(t, course.ErrHasActiveEnrollments, errors.Cause(err))

	got, err := svc.Deactivate(ctx, idle.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, course.StatusInactive, got.Status)
}

func TestService_FeaturedAndCategory(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := setup(t)

	for i := 0; i < 8; i++ {
		testutil.CreateCourse(t, repo, "Featured course "+string(rune('A'+i)), "rating", "$1,000", 1000, 5, course.StatusActive, true)
	}
	testutil.CreateCourse(t, repo, "Hidden draft course", "rating", "$1,000", 1000, 5, course.StatusDraft, true)
	testutil.CreateCourse(t, repo, "Zulu License", "license", "$1,000", 1000, 5, course.StatusActive, false)
	testutil.CreateCourse(t, repo, "Alpha License", "license", "$1,000", 1000, 5, course.StatusActive, false)

	featured, err := svc.Featured(ctx)
	require.NoError(t, err)
	assert.Len(t, featured, course.FeaturedLimit)
	for _, c := range featured {
		assert.True(t, c.Featured)
		assert.Equal(t, course.StatusActive, c.Status)
	}

	licenses, err := svc.ByCategory(ctx, "LICENSE")
	require.NoError(t, err)
	require.Len(t, licenses, 2)
	assert.Equal(t, "Alpha License", licenses[0].Title)
	assert.Equal(t, "Zulu License", licenses[1].Title)
}
