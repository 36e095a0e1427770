package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

const (
	DefaultMaxStudents = 20
	FeaturedLimit      = 6
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("Course")
	ErrCourseUnavailable    = core.NewError(core.KindConflict, "CourseUnavailable", "Course is not available for enrollment")
	ErrCourseFull           = core.NewError(core.KindConflict, "CourseFull", "Course is full")
	ErrHasActiveEnrollments = core.NewError(core.KindConflict, "CourseHasActiveEnrollments", "Cannot delete course with active enrollments")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]Course, int, error)
		CountCourses(ctx context.Context, filter QueryFilter) (int, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// ReserveSeat increments CurrentEnrollments in a single conditional step: only an active Course
		// with CurrentEnrollments < MaxStudents matches. Fails with ErrNotFound, ErrCourseUnavailable or ErrCourseFull.
		ReserveSeat(ctx context.Context, id string, at time.Time) (Course, error)
		// ReleaseSeat decrements CurrentEnrollments, never below zero.
		ReleaseSeat(ctx context.Context, id string, at time.Time) error
	}

	// EnrollmentCounter counts enrollments currently holding a seat in a Course.
	EnrollmentCounter interface {
		CountActiveEnrollments(ctx context.Context, courseID string) (int, error)
	}

	Service struct {
		repo        Repository
		enrollments EnrollmentCounter
	}
)

func NewService(repo Repository, enrollments EnrollmentCounter) *Service {
	return &Service{repo: repo, enrollments: enrollments}
}

func (svc *Service) Create(ctx context.Context, nc NewCourse, by user.User) (Course, error) {
	now := nowFunc().UTC()
	c := Course{
		Title:                   nc.Title,
		Description:             nc.Description,
		Duration:                nc.Duration,
		Price:                   nc.Price,
		Status:                  nc.Status,
		Category:                nc.Category,
		Level:                   nc.Level,
		Prerequisites:           nc.Prerequisites,
		Curriculum:              nc.Curriculum,
		InstructorRequirements:  nc.InstructorRequirements,
		AircraftRequirements:    nc.AircraftRequirements,
		MaxStudents:             nc.MaxStudents,
		EstimatedCompletionTime: nc.EstimatedCompletionTime,
		Materials:               nc.Materials,
		ExamRequirements:        nc.ExamRequirements,
		CertificationDetails:    nc.CertificationDetails,
		Tags:                    nc.Tags,
		Image:                   nc.Image,
		Featured:                nc.Featured,
		CreatedBy:               by.ID,
		LastModifiedBy:          by.ID,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	if c.MaxStudents == 0 {
		c.MaxStudents = DefaultMaxStudents
	}
	if num, ok := ParsePrice(c.Price); ok {
		c.PriceNumeric = num
	} else if nc.PriceNumeric != nil {
		c.PriceNumeric = *nc.PriceNumeric
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, opts core.QueryOptions) ([]Course, int, error) {
	filter.Clean()
	return svc.repo.QueryCourses(ctx, filter, opts)
}

// Featured returns the newest active & featured courses.
func (svc *Service) Featured(ctx context.Context) ([]Course, error) {
	featured := true
	courses, _, err := svc.repo.QueryCourses(
		ctx,
		QueryFilter{Statuses: []string{StatusActive}, Featured: &featured},
		core.QueryOptions{Orderings: []core.DBOrdering{{Field: "createdAt"}}, Limit: FeaturedLimit},
	)
	return courses, err
}

// ByCategory returns the active courses of a category sorted by title.
func (svc *Service) ByCategory(ctx context.Context, category string) ([]Course, error) {
	courses, _, err := svc.repo.QueryCourses(
		ctx,
		QueryFilter{Statuses: []string{StatusActive}, Category: core.CleanString(category, true /* lower */)},
		core.QueryOptions{Orderings: []core.DBOrdering{{Field: "title", Ascending: true}}},
	)
	return courses, err
}

// Update applies validated uc on the Course identified by id; a price change recomputes PriceNumeric.
func (svc *Service) Update(ctx context.Context, id string, uc UpdateCourse, by user.User) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if uc.MaxStudents != nil && *uc.MaxStudents < c.CurrentEnrollments {
		return Course{}, core.NewFieldError("maxStudents", "maxStudents cannot be lower than current enrollments")
	}
	uc.apply(&c)
	c.LastModifiedBy = by.ID
	c.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// Deactivate soft-deletes the Course; rejected while enrollments still hold seats in it.
func (svc *Service) Deactivate(ctx context.Context, id string, by user.User) (Course, error) {
	c, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	n, err := svc.enrollments.CountActiveEnrollments(ctx, id)
	if err != nil {
		return Course{}, errors.Wrap(err, "counting active enrollments")
	}
	if n > 0 {
		return Course{}, ErrHasActiveEnrollments
	}
	c.Status = StatusInactive
	c.LastModifiedBy = by.ID
	c.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}
