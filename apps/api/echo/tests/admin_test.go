package tests

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/user"
	"github.com/trezcool/skytraining/tests"
)

// enroll enrolls the student behind token, then records amount as paid when positive.
func (a *app) enroll(t *testing.T, token, adminToken, courseID string, amount float64) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/enrollments", token, map[string]string{
		"courseId":     courseID,
		"paymentMode":  "Credit Card",
		"installments": enrollment.PlanDirect,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var data struct {
		Enrollment struct {
			ID string `json:"id"`
		} `json:"enrollment"`
	}
	decodeData(t, rec, &data)

	if amount > 0 {
		rec = a.do(t, http.MethodPost, "/api/enrollments/"+data.Enrollment.ID+"/payment", adminToken, map[string]float64{"amount": amount})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	return data.Enrollment.ID
}

func TestAdminApi_access(t *testing.T) {
	a := setup(t)
	_, token := a.student(t, "Bessie", "bessie@test.cd")

	paths := []string{"/api/admin/dashboard", "/api/admin/students", "/api/admin/analytics", "/api/admin/export/students"}
	tests := make([]httpTest, 0, 2*len(paths))
	for _, path := range paths {
		tests = append(tests,
			httpTest{name: "anonymous " + path, method: http.MethodGet, path: path, wantCode: http.StatusUnauthorized},
			httpTest{name: "student " + path, method: http.MethodGet, path: path, token: token, wantCode: http.StatusForbidden},
		)
	}
	a.run(t, tests)
}

func TestAdminApi_dashboard(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, bessieToken := a.student(t, "Bessie", "bessie@test.cd")
	_, jackieToken := a.student(t, "Jackie", "jackie@test.cd")
	testutil.CreateUser(t, a.usrRepo, "Gone", "Away", "gone@test.cd", "", user.RoleStudent, false)

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	ir := testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusActive, false)
	testutil.CreateCourse(t, a.crsRepo, "Multi Engine Rating", "rating", "$7,500", 7500, 10, course.StatusDraft, false)

	a.enroll(t, bessieToken, adminToken, ppl.ID, 5000)
	a.enroll(t, bessieToken, adminToken, ir.ID, 0)
	a.enroll(t, jackieToken, adminToken, ppl.ID, 2500)

	rec := a.do(t, http.MethodGet, "/api/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Overview struct {
			TotalStudents     int     `json:"totalStudents"`
			TotalCourses      int     `json:"totalCourses"`
			TotalEnrollments  int     `json:"totalEnrollments"`
			ActiveEnrollments int     `json:"activeEnrollments"`
			TotalRevenue      float64 `json:"totalRevenue"`
			MonthlyRevenue    float64 `json:"monthlyRevenue"`
		} `json:"overview"`
		RecentEnrollments []json.RawMessage `json:"recentEnrollments"`
		PopularCourses    []struct {
			Title           string `json:"title"`
			EnrollmentCount int    `json:"enrollmentCount"`
		} `json:"popularCourses"`
	}
	decodeData(t, rec, &data)

	assert.Equal(t, 2, data.Overview.TotalStudents)
	assert.Equal(t, 2, data.Overview.TotalCourses)
	assert.Equal(t, 3, data.Overview.TotalEnrollments)
	assert.Equal(t, 3, data.Overview.ActiveEnrollments)
	assert.Equal(t, 7500.0, data.Overview.TotalRevenue)
	assert.Equal(t, 7500.0, data.Overview.MonthlyRevenue)
	assert.Len(t, data.RecentEnrollments, 3)
	require.NotEmpty(t, data.PopularCourses)
	assert.Equal(t, "Private Pilot License", data.PopularCourses[0].Title)
	assert.Equal(t, 2, data.PopularCourses[0].EnrollmentCount)

	t.Run("analytics", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/admin/analytics", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var an struct {
			EnrollmentTrends []struct {
				Count int `json:"count"`
			} `json:"enrollmentTrends"`
			PaymentAnalytics []struct {
				ID         string  `json:"id"`
				Count      int     `json:"count"`
				PaidAmount float64 `json:"paidAmount"`
			} `json:"paymentAnalytics"`
		}
		decodeData(t, rec, &an)
		require.Len(t, an.EnrollmentTrends, 12)
		assert.Equal(t, 3, an.EnrollmentTrends[11].Count)
		require.Len(t, an.PaymentAnalytics, 1)
		assert.Equal(t, "Credit Card", an.PaymentAnalytics[0].ID)
		assert.Equal(t, 7500.0, an.PaymentAnalytics[0].PaidAmount)
	})
}

func TestAdminApi_students(t *testing.T) {
	a := setup(t)
	admin, adminToken := a.admin(t, "Chief", "chief@test.cd")
	bessie, bessieToken := a.student(t, "Bessie", "bessie@test.cd")
	a.student(t, "Jackie", "jackie@test.cd")
	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	a.enroll(t, bessieToken, adminToken, ppl.ID, 5000)

	t.Run("list", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/admin/students?search=bessie", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Students []struct {
				ID            string            `json:"id"`
				Enrollments   []json.RawMessage `json:"enrollments"`
				TotalCourses  int               `json:"totalCourses"`
				ActiveCourses int               `json:"activeCourses"`
			} `json:"students"`
			Pagination struct {
				pagination
				TotalStudents int `json:"totalStudents"`
			} `json:"pagination"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, 1, data.Pagination.TotalStudents)
		require.Len(t, data.Students, 1)
		assert.Equal(t, bessie.ID, data.Students[0].ID)
		assert.Len(t, data.Students[0].Enrollments, 1)
		assert.Equal(t, 1, data.Students[0].TotalCourses)
		assert.Equal(t, 1, data.Students[0].ActiveCourses)
	})

	t.Run("detail", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/admin/students/"+bessie.ID, adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Student struct {
				ID         string `json:"id"`
				Statistics struct {
					TotalCourses    int     `json:"totalCourses"`
					TotalCourseFees float64 `json:"totalCourseFees"`
					TotalPaid       float64 `json:"totalPaid"`
					PendingAmount   float64 `json:"pendingAmount"`
				} `json:"statistics"`
			} `json:"student"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, bessie.ID, data.Student.ID)
		assert.Equal(t, 1, data.Student.Statistics.TotalCourses)
		assert.Equal(t, 12000.0, data.Student.Statistics.TotalCourseFees)
		assert.Equal(t, 5000.0, data.Student.Statistics.TotalPaid)
		assert.Equal(t, 7000.0, data.Student.Statistics.PendingAmount)
	})

	a.run(t, []httpTest{
		{name: "admins are not students", method: http.MethodGet, path: "/api/admin/students/" + admin.ID, token: adminToken, wantCode: http.StatusNotFound},
		{
			name:     "status required",
			method:   http.MethodPut,
			path:     "/api/admin/students/" + bessie.ID + "/status",
			body:     map[string]string{},
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "deactivate",
			method:   http.MethodPut,
			path:     "/api/admin/students/" + bessie.ID + "/status",
			body:     map[string]bool{"isActive": false},
			token:    adminToken,
			wantCode: http.StatusOK,
			wantMsg:  "Student deactivated successfully",
		},
		{name: "deactivated student is signed out", method: http.MethodGet, path: "/api/auth/me", token: bessieToken, wantCode: http.StatusUnauthorized},
		{
			name:     "activate",
			method:   http.MethodPut,
			path:     "/api/admin/students/" + bessie.ID + "/status",
			body:     map[string]bool{"isActive": true},
			token:    adminToken,
			wantCode: http.StatusOK,
			wantMsg:  "Student activated successfully",
		},
		{
			name:     "admin status cannot be toggled here",
			method:   http.MethodPut,
			path:     "/api/admin/students/" + admin.ID + "/status",
			body:     map[string]bool{"isActive": false},
			token:    adminToken,
			wantCode: http.StatusNotFound,
		},
	})
}

func TestAdminApi_export(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, bessieToken := a.student(t, "Bessie", "bessie@test.cd")
	a.student(t, "Jackie", "jackie@test.cd")
	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	testutil.CreateCourse(t, a.crsRepo, "Multi Engine Rating", "rating", "$7,500", 7500, 10, course.StatusDraft, false)
	a.enroll(t, bessieToken, adminToken, ppl.ID, 0)

	tests := []struct {
		typ       string
		wantCount int
	}{
		{typ: "students", wantCount: 2},
		{typ: "enrollments", wantCount: 1},
		{typ: "courses", wantCount: 2},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, "/api/admin/export/"+tt.typ, adminToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			disposition := rec.Header().Get("Content-Disposition")
			assert.True(t, strings.HasPrefix(disposition, `attachment; filename="`+tt.typ+"_export_"), disposition)
			assert.True(t, strings.HasSuffix(disposition, `.json"`), disposition)

			var body struct {
				Status     string            `json:"status"`
				ExportType string            `json:"exportType"`
				Count      int               `json:"count"`
				Data       []json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "success", body.Status)
			assert.Equal(t, tt.typ, body.ExportType)
			assert.Equal(t, tt.wantCount, body.Count)
			assert.Len(t, body.Data, tt.wantCount)
		})
	}

	a.run(t, []httpTest{
		{
			name:     "invalid type",
			method:   http.MethodGet,
			path:     "/api/admin/export/pilots",
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid export type. Use: students, enrollments, or courses",
		},
	})
}
