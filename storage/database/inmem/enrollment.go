package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/enrollment"
)

var enrollmentComparators = comparators[enrollment.Enrollment]{
	"enrollmentDate": func(a, b enrollment.Enrollment) int { return a.EnrollmentDate.Compare(b.EnrollmentDate) },
	"status":         func(a, b enrollment.Enrollment) int { return strings.Compare(a.Status, b.Status) },
	"createdAt":      func(a, b enrollment.Enrollment) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"updatedAt":      func(a, b enrollment.Enrollment) int { return a.UpdatedAt.Compare(b.UpdatedAt) },
}

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db.enrollment}
}

func (repo *enrollmentRepository) filter(qf enrollment.QueryFilter) []enrollment.Enrollment {
	enrs := make([]enrollment.Enrollment, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		if qf.Match(*e) {
			enrs = append(enrs, *e)
		}
	}
	return enrs
}

func (repo *enrollmentRepository) find(studentID, courseID string) (*enrollment.Enrollment, bool) {
	for _, e := range repo.db.table {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, true
		}
	}
	return nil, false
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, found := repo.find(e.StudentID, e.CourseID); found {
		return enrollment.Enrollment{}, enrollment.ErrDuplicate
	}
	e.ID = newID()
	repo.db.table[e.ID] = &e
	return e, nil
}

func (repo *enrollmentRepository) GetEnrollmentByID(_ context.Context, id string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return *e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) FindEnrollment(_ context.Context, studentID, courseID string) (enrollment.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, found := repo.find(studentID, courseID); found {
		return *e, nil
	}
	return enrollment.Enrollment{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryEnrollments(
	_ context.Context,
	qf enrollment.QueryFilter,
	opts core.QueryOptions,
) ([]enrollment.Enrollment, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := repo.filter(qf)
	sortRecords(enrs, opts.Orderings, enrollmentComparators)
	return paginate(enrs, opts), len(enrs), nil
}

func (repo *enrollmentRepository) CountEnrollments(_ context.Context, qf enrollment.QueryFilter) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.filter(qf)), nil
}

func (repo *enrollmentRepository) SummarizeEnrollments(_ context.Context, qf enrollment.QueryFilter) ([]enrollment.Summary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	enrs := repo.filter(qf)
	sums := make([]enrollment.Summary, len(enrs))
	for i := range enrs {
		sums[i] = enrs[i].Summary()
	}
	return sums, nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, e enrollment.Enrollment) (enrollment.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[e.ID]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	e.StudentID = orig.StudentID
	e.CourseID = orig.CourseID
	e.CreatedAt = orig.CreatedAt
	repo.db.table[e.ID] = &e
	return e, nil
}
