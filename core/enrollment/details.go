package enrollment

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/user"
)

type (
	StudentSummary struct {
		ID        string `json:"id"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone,omitempty"`
	}

	CourseSummary struct {
		ID           string  `json:"id"`
		Title        string  `json:"title"`
		Description  string  `json:"description,omitempty"`
		Duration     string  `json:"duration,omitempty"`
		Price        string  `json:"price"`
		PriceNumeric float64 `json:"priceNumeric"`
		Category     string  `json:"category"`
		Level        string  `json:"level"`
		Image        string  `json:"image,omitempty"`
	}

	// Detail is an Enrollment along with short summaries of its student & course.
	Detail struct {
		Enrollment
		Student *StudentSummary `json:"student,omitempty"`
		Course  *CourseSummary  `json:"course,omitempty"`
	}
)

func NewStudentSummary(u user.User) *StudentSummary {
	return &StudentSummary{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Phone: u.Phone}
}

func NewCourseSummary(c course.Course) *CourseSummary {
	return &CourseSummary{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		Duration:     c.Duration,
		Price:        c.Price,
		PriceNumeric: c.PriceNumeric,
		Category:     c.Category,
		Level:        c.Level,
		Image:        c.Image,
	}
}

// Describe attaches student & course summaries to enrs. Either repository may be nil to skip that side.
// Students or courses that no longer exist are left out of the Detail.
func Describe(ctx context.Context, enrs []Enrollment, users user.Repository, courses course.Repository) ([]Detail, error) {
	details := make([]Detail, len(enrs))
	studentIDs := make([]string, 0, len(enrs))
	courseIDs := make([]string, 0, len(enrs))
	for i, e := range enrs {
		details[i].Enrollment = e
		studentIDs = appendUnique(studentIDs, e.StudentID)
		courseIDs = appendUnique(courseIDs, e.CourseID)
	}
	if len(enrs) == 0 {
		return details, nil
	}

	if users != nil {
		students, _, err := users.QueryUsers(ctx, user.QueryFilter{IDs: studentIDs}, core.QueryOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "querying students")
		}
		byID := make(map[string]user.User, len(students))
		for _, s := range students {
			byID[s.ID] = s
		}
		for i := range details {
			if s, ok := byID[details[i].StudentID]; ok {
				details[i].Student = NewStudentSummary(s)
			}
		}
	}

	if courses != nil {
		crss, _, err := courses.QueryCourses(ctx, course.QueryFilter{IDs: courseIDs}, core.QueryOptions{})
		if err != nil {
			return nil, errors.Wrap(err, "querying courses")
		}
		byID := make(map[string]course.Course, len(crss))
		for _, c := range crss {
			byID[c.ID] = c
		}
		for i := range details {
			if c, ok := byID[details[i].CourseID]; ok {
				details[i].Course = NewCourseSummary(c)
			}
		}
	}
	return details, nil
}

func appendUnique(ss []string, s string) []string {
	if contains(ss, s) {
		return ss
	}
	return append(ss, s)
}

// Describe attaches course summaries to enrs, and student summaries when withStudents is set.
func (svc *Service) Describe(ctx context.Context, enrs []Enrollment, withStudents bool) ([]Detail, error) {
	var users user.Repository
	if withStudents {
		users = svc.users
	}
	return Describe(ctx, enrs, users, svc.courses)
}
