package inmemdb

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
)

var courseComparators = comparators[course.Course]{
	"title":              func(a, b course.Course) int { return strings.Compare(a.Title, b.Title) },
	"level":              func(a, b course.Course) int { return strings.Compare(a.Level, b.Level) },
	"category":           func(a, b course.Course) int { return strings.Compare(a.Category, b.Category) },
	"priceNumeric":       func(a, b course.Course) int { return cmp.Compare(a.PriceNumeric, b.PriceNumeric) },
	"currentEnrollments": func(a, b course.Course) int { return cmp.Compare(a.CurrentEnrollments, b.CurrentEnrollments) },
	"createdAt":          func(a, b course.Course) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt":          func(a, b course.Course) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) filter(qf course.QueryFilter) []course.Course {
	courses := make([]course.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		if qf.Match(*c) {
			courses = append(courses, *c)
		}
	}
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = newID()
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, qf course.QueryFilter, opts core.QueryOptions) ([]course.Course, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := repo.filter(qf)
	sortRecords(courses, opts.Orderings, courseComparators)
	return paginate(courses, opts), len(courses), nil
}

func (repo *courseRepository) CountCourses(_ context.Context, qf course.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.filter(qf)), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	// the seat counter is only changed through ReserveSeat & ReleaseSeat
	c.CurrentEnrollments = orig.CurrentEnrollments
	c.CreatedAt = orig.CreatedAt
	c.CreatedBy = orig.CreatedBy
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) ReserveSeat(_ context.Context, id string, at time.Time) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.table[id]
	switch {
	case !ok:
		return course.Course{}, course.ErrNotFound
	case !c.IsActive():
		return course.Course{}, course.ErrCourseUnavailable
	case c.IsFull():
		return course.Course{}, course.ErrCourseFull
	}
	c.CurrentEnrollments++
	c.UpdatedAt = at
	return *c, nil
}

func (repo *courseRepository) ReleaseSeat(_ context.Context, id string, at time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c, ok := repo.db.table[id]
	if !ok {
		return course.ErrNotFound
	}
	if c.CurrentEnrollments > 0 {
		c.CurrentEnrollments--
		c.UpdatedAt = at
	}
	return nil
}
