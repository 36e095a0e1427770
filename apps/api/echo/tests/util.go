package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/skytraining/apps/api/echo"
	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/auth"
	"github.com/trezcool/skytraining/core/course"
	"github.com/trezcool/skytraining/core/enrollment"
	"github.com/trezcool/skytraining/core/report"
	"github.com/trezcool/skytraining/core/user"
	"github.com/trezcool/skytraining/services/email"
	"github.com/trezcool/skytraining/storage/database/inmem"
	"github.com/trezcool/skytraining/tests"
)

const testPassword = "Passw0rd!"

type app struct {
	server  *echoapi.Server
	authSvc *auth.Service
	usrRepo user.Repository
	crsRepo course.Repository
	enrRepo enrollment.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *app {
	t.Helper()
	conf := core.NewTestConfig()
	logger := core.NewNopLogger()
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.Open()
	a := &app{
		usrRepo: inmemdb.NewUserRepository(db),
		crsRepo: inmemdb.NewCourseRepository(db),
		enrRepo: inmemdb.NewEnrollmentRepository(db),
		mailSvc: emailsvc.NewConsoleServiceMock(conf),
	}
	validate, translator := testutil.NewValidator()
	usrSvc := user.NewService(a.usrRepo, a.mailSvc, user.NewServiceOptions(conf))
	enrSvc := enrollment.NewService(a.enrRepo, a.crsRepo, a.usrRepo, a.mailSvc, logger)
	a.authSvc = auth.NewService(a.usrRepo, auth.NewConfig(conf))

	a.server = echoapi.NewServer(echoapi.Options{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		AuthSvc:       a.authSvc,
		UserSvc:       usrSvc,
		CourseSvc:     course.NewService(a.crsRepo, enrSvc),
		EnrollmentSvc: enrSvc,
		ReportSvc:     report.NewService(a.usrRepo, a.crsRepo, a.enrRepo),
	})
	return a
}

func ctx() context.Context { return context.Background() }

func (a *app) student(t *testing.T, firstName, email string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, a.usrRepo, firstName, "Student", email, testPassword, user.RoleStudent, true)
	return usr, a.token(t, usr)
}

func (a *app) admin(t *testing.T, firstName, email string) (user.User, string) {
	t.Helper()
	usr := testutil.CreateUser(t, a.usrRepo, firstName, "Admin", email, testPassword, user.RoleAdmin, true)
	return usr, a.token(t, usr)
}

func (a *app) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := a.authSvc.IssueToken(usr.ID)
	require.NoError(t, err)
	return token
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantMsg  string
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.server.ServeHTTP(rec, req)
	return rec
}

func (a *app) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode(t, rec).Message)
			}
		})
	}
}

// response mirrors the API envelope with a lazily decoded payload.
type response struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

// decodeData unmarshals the `data` of the response into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	resp := decode(t, rec)
	require.NoError(t, json.Unmarshal(resp.Data, v), string(resp.Data))
}

type pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}
