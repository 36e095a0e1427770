package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core/user"
	"github.com/trezcool/skytraining/tests"
)

type authData struct {
	User struct {
		ID              string `json:"id"`
		Email           string `json:"email"`
		FullName        string `json:"fullName"`
		UserType        string `json:"userType"`
		EnrolledCourses []struct {
			CourseID   string `json:"courseId"`
			CourseName string `json:"courseName"`
			Status     string `json:"status"`
		} `json:"enrolledCourses"`
	} `json:"user"`
	Token string `json:"token"`
}

func TestAuthApi_register(t *testing.T) {
	a := setup(t)
	testutil.CreateStudent(t, a.usrRepo, "Taken", "taken@test.cd")

	newUser := func(email, pwd, userType string) map[string]string {
		return map[string]string{
			"firstName": "Amelia",
			"lastName":  "Earhart",
			"email":     email,
			"password":  pwd,
			"phone":     "+1 (555) 010-0000",
			"userType":  userType,
		}
	}

	a.run(t, []httpTest{
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     newUser("amelia@test.cd", "password", user.RoleStudent),
			wantCode: http.StatusBadRequest,
			wantMsg:  "Validation failed",
		},
		{
			name:     "duplicate email",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     newUser("TAKEN@test.cd", "Sk1esAbove", user.RoleStudent),
			wantCode: http.StatusBadRequest,
			wantMsg:  "User with this email already exists",
		},
		{
			name:     "admin self signup",
			method:   http.MethodPost,
			path:     "/api/auth/register",
			body:     newUser("boss@test.cd", "Sk1esAbove", user.RoleAdmin),
			wantCode: http.StatusForbidden,
		},
	})

	t.Run("registered", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/auth/register", "", newUser("Amelia@Test.cd", "Sk1esAbove", user.RoleStudent))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var data authData
		decodeData(t, rec, &data)
		assert.Equal(t, "amelia@test.cd", data.User.Email)
		assert.Equal(t, "Amelia Earhart", data.User.FullName)
		assert.Equal(t, user.RoleStudent, data.User.UserType)
		assert.Empty(t, data.User.EnrolledCourses)
		assert.NotEmpty(t, data.Token)
		assert.NotContains(t, rec.Body.String(), "password")

		// the token opens a session
		rec = a.do(t, http.MethodGet, "/api/auth/me", data.Token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var me authData
		decodeData(t, rec, &me)
		assert.Equal(t, data.User.ID, me.User.ID)
	})
}

func TestAuthApi_login(t *testing.T) {
	a := setup(t)
	student, _ := a.student(t, "Bessie", "bessie@test.cd")
	a.admin(t, "Chief", "chief@test.cd")

	login := func(email, pwd, userType string) map[string]string {
		return map[string]string{"email": email, "password": pwd, "userType": userType}
	}

	a.run(t, []httpTest{
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     map[string]string{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown email",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("nobody@test.cd", testPassword, user.RoleStudent),
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid login credentials",
		},
		{
			name:     "user type mismatch",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("chief@test.cd", testPassword, user.RoleStudent),
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid user type for this account",
		},
		{
			name:     "admin",
			method:   http.MethodPost,
			path:     "/api/auth/login",
			body:     login("chief@test.cd", testPassword, user.RoleAdmin),
			wantCode: http.StatusOK,
			wantMsg:  "Login successful",
		},
	})

	t.Run("student", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/auth/login", "", login(" Bessie@test.cd ", testPassword, user.RoleStudent))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var data authData
		decodeData(t, rec, &data)
		assert.Equal(t, student.ID, data.User.ID)
		assert.NotNil(t, data.User.EnrolledCourses)
		assert.NotEmpty(t, data.Token)
	})
}

func TestAuthApi_lockout(t *testing.T) {
	a := setup(t)
	a.student(t, "Jackie", "jackie@test.cd")

	body := map[string]string{"email": "jackie@test.cd", "password": "wr0ngPass", "userType": user.RoleStudent}
	for i := 0; i < 5; i++ {
		rec := a.do(t, http.MethodPost, "/api/auth/login", "", body)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// even the right password is refused while locked
	body["password"] = testPassword
	rec := a.do(t, http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account temporarily locked due to too many failed login attempts", decode(t, rec).Message)
}

func TestAuthApi_session(t *testing.T) {
	a := setup(t)
	_, token := a.student(t, "Harriet", "harriet@test.cd")
	inactive := testutil.CreateUser(t, a.usrRepo, "Gone", "Away", "gone@test.cd", testPassword, user.RoleStudent, false)
	inactiveToken := a.token(t, inactive)

	a.run(t, []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/api/auth/me",
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Access denied. No token provided.",
		},
		{
			name:     "garbage token",
			method:   http.MethodGet,
			path:     "/api/auth/me",
			token:    "not.a.jwt",
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid token.",
		},
		{
			name:     "deactivated user",
			method:   http.MethodGet,
			path:     "/api/auth/me",
			token:    inactiveToken,
			wantCode: http.StatusUnauthorized,
			wantMsg:  "Invalid token. User not found or deactivated.",
		},
		{
			name:     "logout",
			method:   http.MethodPost,
			path:     "/api/auth/logout",
			token:    token,
			wantCode: http.StatusOK,
			wantMsg:  "Logout successful",
		},
	})

	t.Run("refresh", func(t *testing.T) {
		rec := a.do(t, http.MethodPost, "/api/auth/refresh", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var data authData
		decodeData(t, rec, &data)
		assert.NotEmpty(t, data.Token)
	})
}

func TestServer_health(t *testing.T) {
	a := setup(t)

	rec := a.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"environment":"test"`)

	rec = a.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "requests_total")
}
