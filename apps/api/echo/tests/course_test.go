package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/tests"
)

type courseData struct {
	ID                   string  `json:"id"`
	Title                string  `json:"title"`
	Price                string  `json:"price"`
	PriceNumeric         float64 `json:"priceNumeric"`
	Status               string  `json:"status"`
	CurrentEnrollments   int     `json:"currentEnrollments"`
	CreatedBy            string  `json:"createdBy"`
	LastModifiedBy       string  `json:"lastModifiedBy"`
	IsAvailable          bool    `json:"isAvailable"`
	EnrollmentPercentage float64 `json:"enrollmentPercentage"`
}

type courseListData struct {
	Courses    []courseData `json:"courses"`
	Pagination struct {
		pagination
		TotalCourses int `json:"totalCourses"`
	} `json:"pagination"`
}

func TestCourseApi_list(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, studentToken := a.student(t, "Bessie", "bessie@test.cd")

	testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	testutil.CreateCourse(t, a.crsRepo, "Commercial Pilot License", "license", "$25,000", 25000, 10, course.StatusActive, false)
	testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusActive, true)
	testutil.CreateCourse(t, a.crsRepo, "Multi Engine Rating", "rating", "$7,500", 7500, 10, course.StatusDraft, false)
	testutil.CreateCourse(t, a.crsRepo, "Flight Instructor", "certification", "$6,000", 6000, 10, course.StatusInactive, false)

	titles := func(data courseListData) []string {
		ts := make([]string, 0, len(data.Courses))
		for _, c := range data.Courses {
			ts = append(ts, c.Title)
		}
		return ts
	}

	tests := []struct {
		name      string
		path      string
		token     string
		want      []string
		wantTotal int
	}{
		{
			name:      "anonymous sees the active catalog",
			path:      "/api/courses?sortBy=title&sortOrder=asc",
			want:      []string{"Commercial Pilot License", "Instrument Rating", "Private Pilot License"},
			wantTotal: 3,
		},
		{
			name:      "students cannot ask for drafts",
			path:      "/api/courses?status=draft",
			token:     studentToken,
			want:      []string{"Private Pilot License", "Commercial Pilot License", "Instrument Rating"},
			wantTotal: 3,
		},
		{
			name:      "admin drafts",
			path:      "/api/courses?status=draft",
			token:     adminToken,
			want:      []string{"Multi Engine Rating"},
			wantTotal: 1,
		},
		{
			name:      "admin all statuses",
			path:      "/api/courses?status=all&sortBy=priceNumeric&sortOrder=desc",
			token:     adminToken,
			want:      []string{"Commercial Pilot License", "Private Pilot License", "Instrument Rating", "Multi Engine Rating", "Flight Instructor"},
			wantTotal: 5,
		},
		{
			name:      "category & search",
			path:      "/api/courses?category=license&search=commercial",
			want:      []string{"Commercial Pilot License"},
			wantTotal: 1,
		},
		{
			name:      "featured",
			path:      "/api/courses?featured=true&sortBy=title&sortOrder=asc",
			want:      []string{"Instrument Rating", "Private Pilot License"},
			wantTotal: 2,
		},
		{
			name:      "unknown sort field falls back to newest first",
			path:      "/api/courses?sortBy=password",
			want:      []string{"Private Pilot License", "Commercial Pilot License", "Instrument Rating"},
			wantTotal: 3,
		},
		{
			name:      "paginated",
			path:      "/api/courses?sortBy=title&sortOrder=asc&page=2&limit=2",
			want:      []string{"Private Pilot License"},
			wantTotal: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, tt.path, tt.token, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var data courseListData
			decodeData(t, rec, &data)
			assert.ElementsMatch(t, tt.want, titles(data))
			assert.Equal(t, tt.wantTotal, data.Pagination.TotalCourses)
		})
	}

	t.Run("pagination flags", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/courses?page=2&limit=2", "", nil)
		var data courseListData
		decodeData(t, rec, &data)
		assert.Equal(t, 2, data.Pagination.CurrentPage)
		assert.Equal(t, 2, data.Pagination.TotalPages)
		assert.False(t, data.Pagination.HasNextPage)
		assert.True(t, data.Pagination.HasPrevPage)
	})
}

func TestCourseApi_retrieve(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, studentToken := a.student(t, "Bessie", "bessie@test.cd")

	active := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 4, course.StatusActive, true)
	draft := testutil.CreateCourse(t, a.crsRepo, "Multi Engine Rating", "rating", "$7,500", 7500, 10, course.StatusDraft, false)

	a.run(t, []httpTest{
		{name: "unknown", method: http.MethodGet, path: "/api/courses/lol", wantCode: http.StatusNotFound, wantMsg: "Course not found"},
		{name: "draft hidden from anonymous", method: http.MethodGet, path: "/api/courses/" + draft.ID, wantCode: http.StatusNotFound},
		{name: "draft hidden from students", method: http.MethodGet, path: "/api/courses/" + draft.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "draft visible to admins", method: http.MethodGet, path: "/api/courses/" + draft.ID, token: adminToken, wantCode: http.StatusOK},
	})

	t.Run("derived fields", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/courses/"+active.ID, "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data struct {
			Course courseData `json:"course"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, active.ID, data.Course.ID)
		assert.True(t, data.Course.IsAvailable)
		assert.Equal(t, 0.0, data.Course.EnrollmentPercentage)
	})
}

func TestCourseApi_featuredAndCategory(t *testing.T) {
	a := setup(t)
	testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	testutil.CreateCourse(t, a.crsRepo, "Airline Transport Pilot", "license", "$40,000", 40000, 10, course.StatusActive, false)
	testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusDraft, true)

	t.Run("featured", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/courses/featured/list", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data courseListData
		decodeData(t, rec, &data)
		require.Len(t, data.Courses, 1)
		assert.Equal(t, "Private Pilot License", data.Courses[0].Title)
	})

	t.Run("category", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/courses/category/license", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Courses  []courseData `json:"courses"`
			Category string       `json:"category"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, "license", data.Category)
		require.Len(t, data.Courses, 2)
		assert.Equal(t, "Airline Transport Pilot", data.Courses[0].Title)
		assert.Equal(t, "Private Pilot License", data.Courses[1].Title)
	})
}

func TestCourseApi_manage(t *testing.T) {
	a := setup(t)
	admin, adminToken := a.admin(t, "Chief", "chief@test.cd")
	student, studentToken := a.student(t, "Bessie", "bessie@test.cd")

	newCourse := map[string]interface{}{
		"title":       "Commercial Pilot License",
		"description": "Fly for hire: advanced maneuvers and commercial operations",
		"duration":    "9 months",
		"price":       "$8,500",
		"category":    "license",
		"level":       "advanced",
		"maxStudents": 8,
	}

	a.run(t, []httpTest{
		{name: "anonymous", method: http.MethodPost, path: "/api/courses", body: newCourse, wantCode: http.StatusUnauthorized},
		{name: "student", method: http.MethodPost, path: "/api/courses", body: newCourse, token: studentToken, wantCode: http.StatusForbidden},
		{
			name:     "invalid",
			method:   http.MethodPost,
			path:     "/api/courses",
			body:     map[string]interface{}{"title": "PPL", "category": "space"},
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Validation failed",
		},
	})

	var created courseData
	t.Run("create derives the numeric price", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/courses", adminToken, newCourse)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var data struct {
			Course courseData `json:"course"`
		}
		decodeData(t, rec, &data)
		created = data.Course
		assert.Equal(t, 8500.0, created.PriceNumeric)
		assert.Equal(t, course.StatusActive, created.Status)
		assert.Equal(t, admin.ID, created.CreatedBy)
	})

	t.Run("update recomputes the numeric price", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, "/api/courses/"+created.ID, adminToken, map[string]string{"price": "$9,000"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data struct {
			Course courseData `json:"course"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, "$9,000", data.Course.Price)
		assert.Equal(t, 9000.0, data.Course.PriceNumeric)
		assert.Equal(t, admin.ID, data.Course.LastModifiedBy)
	})

	t.Run("delete is refused while seats are held", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/enrollments", studentToken, map[string]string{
			"courseId":     created.ID,
			"paymentMode":  "Cash",
			"installments": enrollment.PlanDirect,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodDelete, "/api/courses/"+created.ID, adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, course.ErrHasActiveEnrollments.Message, decode(t, rec).Message)
	})

	t.Run("soft delete", func(t *testing.T) {
		enr, err := a.enrRepo.FindEnrollment(ctx(), student.ID, created.ID)
		require.NoError(t, err)
		rec := a.do(t, http.MethodPut, "/api/enrollments/"+enr.ID+"/status", adminToken, map[string]string{"status": enrollment.StatusDropped})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = a.do(t, http.MethodDelete, "/api/courses/"+created.ID, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Course deactivated successfully", decode(t, rec).Message)

		c, err := a.crsRepo.GetCourseByID(ctx(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, course.StatusInactive, c.Status)
	})
}
