package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/skytraining/core/user"
	inmemdb "github.com/trezcool/skytraining/storage/database/inmem"
	"github.com/trezcool/skytraining/tests"
)

func setup(t *testing.T) (*commandLine, user.Repository) {
	t.Helper()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	validate, _ := testutil.NewValidator()
	cli := newCommandLine(repo, validate, user.Options{PasswordHashCost: testutil.TestPasswordHashCost})
	cli.out = &bytes.Buffer{}
	return cli, repo
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func (cli *commandLine) runTests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)
	cli.runTests(t, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "resetpassword: no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "unlock: no args", args: []string{"unlock"}, wantErr: errHelp},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, repo := setup(t)
	testutil.CreateStudent(t, repo, "Taken", "taken@test.cd")

	adminArgs := []string{"adduser", "-firstname", "Chief", "-lastname", "Pilot", "-email", "Chief@Test.cd", "-phone", "+1 555 0100", "-admin"}
	cli.runTests(t, []cliTest{
		{name: "no password", args: adminArgs, wantErr: errHelp},
		{
			name:    "email taken",
			args:    []string{"adduser", "-firstname", "Taken", "-lastname", "Again", "-email", "taken@test.cd", "-phone", "+1 555 0100"},
			pwd:     "Sk1esAbove",
			wantErr: user.ErrEmailExists,
		},
		{name: "admin", args: adminArgs, pwd: "Sk1esAbove"},
	})

	t.Run("weak password", func(t *testing.T) {
		mockPassword(t, "password")
		err := cli.run(append([]string{"admin"}, "adduser", "-firstname", "Weak", "-lastname", "Pass", "-email", "weak@test.cd", "-phone", "+1 555 0100"))
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})

	usr, err := repo.GetUserByEmail(context.Background(), "chief@test.cd")
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin())
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Sk1esAbove"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, repo := setup(t)
	usr := testutil.CreateStudent(t, repo, "Bessie", "bessie@test.cd")
	_, err := repo.RecordLoginFailure(context.Background(), usr.ID, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	cli.runTests(t, []cliTest{
		{name: "email but no password", args: []string{"resetpassword", "-email", usr.Email}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, pwd: "N3wSecret", wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", " BESSIE@test.cd "}, pwd: "N3wSecret"},
	})

	refreshed, err := repo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("N3wSecret"))
	assert.False(t, refreshed.IsLocked(time.Now()))
}

func Test_commandLine_unlock(t *testing.T) {
	cli, repo := setup(t)
	usr := testutil.CreateStudent(t, repo, "Jackie", "jackie@test.cd")
	_, err := repo.RecordLoginFailure(context.Background(), usr.ID, 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	cli.runTests(t, []cliTest{
		{name: "user not found", args: []string{"unlock", "-email", "lol@test.cd"}, wantErr: user.ErrNotFound},
		{name: "unlocked", args: []string{"unlock", "-email", usr.Email}},
	})

	refreshed, err := repo.GetUserByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.False(t, refreshed.IsLocked(time.Now()))
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "jackie@test.cd unlocked")
}
