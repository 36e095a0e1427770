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

type enrollmentData struct {
	enrollment.Enrollment
	Student *enrollment.StudentSummary `json:"student"`
	Course  *enrollment.CourseSummary  `json:"course"`
}

func enroll(courseID, plan string) map[string]string {
	return map[string]string{"courseId": courseID, "paymentMode": "Bank Transfer", "installments": plan}
}

func decodeEnrollment(t *testing.T, a *app, method, path, token string, body interface{}, wantCode int) enrollmentData {
	t.Helper()
	rec := a.do(t, method, path, token, body)
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	var data struct {
		Enrollment enrollmentData `json:"enrollment"`
	}
	decodeData(t, rec, &data)
	return data.Enrollment
}

func TestEnrollmentApi_create(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, bessieToken := a.student(t, "Bessie", "bessie@test.cd")
	_, jackieToken := a.student(t, "Jackie", "jackie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 1, course.StatusActive, true)
	draft := testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusDraft, false)

	t.Run("six month plan", func(t *testing.T) {
		enr := decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", bessieToken, enroll(ppl.ID, enrollment.PlanMonths6), http.StatusCreated)

		assert.Equal(t, enrollment.StatusEnrolled, enr.Status)
		assert.Equal(t, 12000.0, enr.Payment.TotalAmount)
		assert.Equal(t, enrollment.PaymentPending, enr.Payment.PaymentStatus)
		require.Len(t, enr.Payment.Schedule, 6)
		for i, entry := range enr.Payment.Schedule {
			assert.Equal(t, 2000.0, entry.Amount)
			assert.Equal(t, enrollment.PaymentPending, entry.Status)
			assert.Equal(t, enr.EnrollmentDate.AddDate(0, i+1, 0).Month(), entry.DueDate.Month())
		}
		require.NotNil(t, enr.Course)
		assert.Equal(t, "Private Pilot License", enr.Course.Title)

		c, err := a.crsRepo.GetCourseByID(ctx(), ppl.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.CurrentEnrollments)
		assert.Len(t, a.mailSvc.SentMessages(), 1)
	})

	a.run(t, []httpTest{
		{
			name:     "admins cannot enroll",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll(ppl.ID, enrollment.PlanDirect),
			token:    adminToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "invalid plan",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll(ppl.ID, "Whenever"),
			token:    jackieToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Validation failed",
		},
		{
			name:     "unknown course",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll("lol", enrollment.PlanDirect),
			token:    jackieToken,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "unavailable course",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll(draft.ID, enrollment.PlanDirect),
			token:    jackieToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Course is not available for enrollment",
		},
		{
			name:     "duplicate",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll(ppl.ID, enrollment.PlanDirect),
			token:    bessieToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "You are already enrolled in this course",
		},
		{
			name:     "course full",
			method:   http.MethodPost,
			path:     "/api/enrollments",
			body:     enroll(ppl.ID, enrollment.PlanDirect),
			token:    jackieToken,
			wantCode: http.StatusBadRequest,
			wantMsg:  "Course is full",
		},
	})

	t.Run("seats never exceed capacity", func(t *testing.T) {
		c, err := a.crsRepo.GetCourseByID(ctx(), ppl.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.CurrentEnrollments)
	})
}

func TestEnrollmentApi_mine(t *testing.T) {
	a := setup(t)
	student, token := a.student(t, "Bessie", "bessie@test.cd")
	other, _ := a.student(t, "Jackie", "jackie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	ir := testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusActive, false)

	decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", token, enroll(ppl.ID, enrollment.PlanDirect), http.StatusCreated)
	decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", token, enroll(ir.ID, enrollment.PlanMonths3), http.StatusCreated)
	decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", a.token(t, other), enroll(ir.ID, enrollment.PlanDirect), http.StatusCreated)

	rec := a.do(t, http.MethodGet, "/api/enrollments/my", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Enrollments []enrollmentData `json:"enrollments"`
	}
	decodeData(t, rec, &data)
	require.Len(t, data.Enrollments, 2)
	for _, enr := range data.Enrollments {
		assert.Equal(t, student.ID, enr.StudentID)
		assert.NotNil(t, enr.Course)
	}

	// the session user lists the same enrollments
	rec = a.do(t, http.MethodGet, "/api/auth/me", token, nil)
	var me authData
	decodeData(t, rec, &me)
	assert.Len(t, me.User.EnrolledCourses, 2)
}

func TestEnrollmentApi_retrieve(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, ownerToken := a.student(t, "Bessie", "bessie@test.cd")
	_, otherToken := a.student(t, "Jackie", "jackie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	enr := decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", ownerToken, enroll(ppl.ID, enrollment.PlanDirect), http.StatusCreated)
	path := "/api/enrollments/" + enr.ID

	decodeEnrollment(t, a, http.MethodPost, path+"/notes", adminToken, map[string]interface{}{"content": "Great landings"}, http.StatusOK)
	decodeEnrollment(t, a, http.MethodPost, path+"/notes", adminToken, map[string]interface{}{"content": "Needs a medical", "type": "medical", "isPrivate": true}, http.StatusOK)

	a.run(t, []httpTest{
		{name: "other student", method: http.MethodGet, path: path, token: otherToken, wantCode: http.StatusForbidden},
		{name: "unknown", method: http.MethodGet, path: "/api/enrollments/lol", token: adminToken, wantCode: http.StatusNotFound},
		{name: "students cannot add notes", method: http.MethodPost, path: path + "/notes", body: map[string]string{"content": "hi"}, token: ownerToken, wantCode: http.StatusForbidden},
	})

	t.Run("owner sees public notes", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodGet, path, ownerToken, nil, http.StatusOK)
		require.Len(t, got.Notes, 1)
		assert.Equal(t, "Great landings", got.Notes[0].Content)
		assert.Equal(t, enrollment.NoteAcademic, got.Notes[0].Type)
	})

	t.Run("admin sees every note", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodGet, path, adminToken, nil, http.StatusOK)
		assert.Len(t, got.Notes, 2)
		require.NotNil(t, got.Student)
		assert.Equal(t, "bessie@test.cd", got.Student.Email)
	})
}

func TestEnrollmentApi_payment(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, token := a.student(t, "Bessie", "bessie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	enr := decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", token, enroll(ppl.ID, enrollment.PlanMonths3), http.StatusCreated)
	path := "/api/enrollments/" + enr.ID + "/payment"

	a.run(t, []httpTest{
		{name: "student", method: http.MethodPost, path: path, body: map[string]float64{"amount": 10}, token: token, wantCode: http.StatusForbidden},
		{name: "negative amount", method: http.MethodPost, path: path, body: map[string]float64{"amount": -5}, token: adminToken, wantCode: http.StatusBadRequest},
	})

	t.Run("partial", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodPost, path, adminToken, map[string]interface{}{"amount": 4000, "transactionId": "tx-1"}, http.StatusOK)
		assert.Equal(t, 4000.0, got.Payment.AmountPaid)
		assert.Equal(t, enrollment.PaymentPartial, got.Payment.PaymentStatus)
		require.Len(t, got.Payment.Schedule, 3)
		assert.Equal(t, enrollment.PaymentPaid, got.Payment.Schedule[0].Status)
		assert.Equal(t, "tx-1", got.Payment.Schedule[0].TransactionID)
		assert.Equal(t, enrollment.PaymentPending, got.Payment.Schedule[1].Status)
	})

	t.Run("paid", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodPost, path, adminToken, map[string]interface{}{"amount": 8000}, http.StatusOK)
		assert.Equal(t, 12000.0, got.Payment.AmountPaid)
		assert.Equal(t, enrollment.PaymentPaid, got.Payment.PaymentStatus)
		assert.NotEmpty(t, got.Payment.Schedule[1].TransactionID)
	})
}

func TestEnrollmentApi_progressAndStatus(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, token := a.student(t, "Bessie", "bessie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	enr := decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", token, enroll(ppl.ID, enrollment.PlanDirect), http.StatusCreated)
	path := "/api/enrollments/" + enr.ID

	seats := func() int {
		c, err := a.crsRepo.GetCourseByID(ctx(), ppl.ID)
		require.NoError(t, err)
		return c.CurrentEnrollments
	}

	a.run(t, []httpTest{
		{name: "out of range", method: http.MethodPut, path: path + "/progress", body: map[string]float64{"overallProgress": 120}, token: adminToken, wantCode: http.StatusBadRequest},
		{name: "invalid status", method: http.MethodPut, path: path + "/status", body: map[string]string{"status": "graduated"}, token: adminToken, wantCode: http.StatusBadRequest},
	})

	t.Run("suspension releases the seat", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodPut, path+"/status", adminToken, map[string]string{"status": enrollment.StatusSuspended}, http.StatusOK)
		assert.Equal(t, enrollment.StatusSuspended, got.Status)
		assert.Equal(t, 0, seats())

		got = decodeEnrollment(t, a, http.MethodPut, path+"/status", adminToken, map[string]string{"status": enrollment.StatusInProgress}, http.StatusOK)
		assert.Equal(t, enrollment.StatusInProgress, got.Status)
		assert.Equal(t, 1, seats())
	})

	t.Run("partial progress", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodPut, path+"/progress", adminToken, map[string]interface{}{
			"overallProgress": 40,
			"flightHours":     map[string]float64{"dual": 12, "solo": 3, "total": 15},
		}, http.StatusOK)
		assert.Equal(t, 40.0, got.Progress.OverallProgress)
		assert.Equal(t, 15.0, got.Progress.FlightHours.Total)
		assert.Equal(t, enrollment.StatusInProgress, got.Status)
	})

	t.Run("full progress completes", func(t *testing.T) {
		got := decodeEnrollment(t, a, http.MethodPut, path+"/progress", adminToken, map[string]float64{"overallProgress": 100}, http.StatusOK)
		assert.Equal(t, enrollment.StatusCompleted, got.Status)
		assert.True(t, got.Completion.IsCompleted)
		assert.NotNil(t, got.Completion.CompletionDate)
		assert.Equal(t, 15.0, got.Progress.FlightHours.Total)
		assert.Equal(t, 0, seats())
	})

	t.Run("completed is final", func(t *testing.T) {
		rec := a.do(t, http.MethodPut, path+"/status", adminToken, map[string]string{"status": enrollment.StatusEnrolled})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, enrollment.ErrInvalidTransition.Message, decode(t, rec).Message)
	})
}

func TestEnrollmentApi_list(t *testing.T) {
	a := setup(t)
	_, adminToken := a.admin(t, "Chief", "chief@test.cd")
	_, bessieToken := a.student(t, "Bessie", "bessie@test.cd")
	_, jackieToken := a.student(t, "Jackie", "jackie@test.cd")

	ppl := testutil.CreateCourse(t, a.crsRepo, "Private Pilot License", "license", "$12,000", 12000, 10, course.StatusActive, true)
	ir := testutil.CreateCourse(t, a.crsRepo, "Instrument Rating", "rating", "$9,000", 9000, 10, course.StatusActive, false)

	decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", bessieToken, enroll(ppl.ID, enrollment.PlanDirect), http.StatusCreated)
	decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", bessieToken, enroll(ir.ID, enrollment.PlanDirect), http.StatusCreated)
	jackie := decodeEnrollment(t, a, http.MethodPost, "/api/enrollments", jackieToken, enroll(ir.ID, enrollment.PlanDirect), http.StatusCreated)
	decodeEnrollment(t, a, http.MethodPut, "/api/enrollments/"+jackie.ID+"/status", adminToken, map[string]string{"status": enrollment.StatusDropped}, http.StatusOK)

	type listData struct {
		Enrollments []enrollmentData `json:"enrollments"`
		Pagination  struct {
			TotalEnrollments int `json:"totalEnrollments"`
		} `json:"pagination"`
	}

	tests := []struct {
		name      string
		query     string
		wantTotal int
	}{
		{name: "all", query: "", wantTotal: 3},
		{name: "by status", query: "?status=dropped", wantTotal: 1},
		{name: "by course", query: "?courseId=" + ir.ID, wantTotal: 2},
		{name: "by student search", query: "?search=bessie", wantTotal: 2},
		{name: "by payment status", query: "?paymentStatus=paid", wantTotal: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, http.MethodGet, "/api/enrollments"+tt.query, adminToken, nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var data listData
			decodeData(t, rec, &data)
			assert.Equal(t, tt.wantTotal, data.Pagination.TotalEnrollments)
			assert.Len(t, data.Enrollments, tt.wantTotal)
			for _, enr := range data.Enrollments {
				assert.NotNil(t, enr.Student)
			}
		})
	}

	t.Run("students are refused", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/enrollments", bessieToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("stats", func(t *testing.T) {
		rec := a.do(t, http.MethodGet, "/api/enrollments/analytics/stats", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data struct {
			Overview struct {
				TotalEnrollments   int `json:"totalEnrollments"`
				ActiveEnrollments  int `json:"activeEnrollments"`
				DroppedEnrollments int `json:"droppedEnrollments"`
			} `json:"overview"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, 3, data.Overview.TotalEnrollments)
		assert.Equal(t, 2, data.Overview.ActiveEnrollments)
		assert.Equal(t, 1, data.Overview.DroppedEnrollments)
	})
}
