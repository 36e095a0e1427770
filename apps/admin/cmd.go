package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/skytraining/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc   *user.Service
	validate *validator.Validate
	out      io.Writer
}

// newCommandLine builds the CLI on top of repo. Admins can only be created from here,
// so the user service it uses allows admin sign up and sends no mail.
func newCommandLine(repo user.Repository, validate *validator.Validate, opts user.Options) *commandLine {
	opts.AllowAdminSignup = true
	return &commandLine{
		usrSvc:   user.NewService(repo, nil, opts),
		validate: validate,
		out:      os.Stdout,
	}
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  adduser -firstname NAME -lastname NAME -email EMAIL -phone PHONE [-admin] - create a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  unlock -email EMAIL - clear the login lockout of a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserFirstName := addUserCmd.String("firstname", "", "The user's first name.")
	addUserLastName := addUserCmd.String("lastname", "", "The user's last name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserPhone := addUserCmd.String("phone", "", "The user's phone number.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Create an admin instead of a student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	unlockCmd := flag.NewFlagSet("unlock", flag.ContinueOnError)
	unlockEmail := unlockCmd.String("email", "", "The user's email.")

	ctx := context.Background()

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		nu := user.NewUser{
			FirstName: *addUserFirstName,
			LastName:  *addUserLastName,
			Email:     *addUserEmail,
			Phone:     *addUserPhone,
			Password:  pwd,
			UserType:  user.RoleStudent,
		}
		if *addUserAdmin {
			nu.UserType = user.RoleAdmin
		}
		return cli.addUser(ctx, nu)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "unlock":
		if err := unlockCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unlockEmail == "" {
			unlockCmd.Usage()
			return errHelp
		}
		if err := cli.usrSvc.Unlock(ctx, *unlockEmail); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "%s unlocked\n", *unlockEmail)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

// addUser creates an active user.User, applying the same validation as the sign up endpoint.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Register(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s %s created (id: %s)\n", usr.Role, usr.Email, usr.ID)
	return nil
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	// a forgotten password is the usual cause of a lockout
	return cli.usrSvc.Unlock(ctx, email)
}
