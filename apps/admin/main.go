package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/skytraining/apps/api/di/dig"
	"github.com/trezcool/skytraining/core"
	"github.com/trezcool/skytraining/core/user"
)

type params struct {
	dig.In
	Conf     *core.Config
	Logger   core.Logger
	Users    user.Repository
	Validate *validator.Validate
	CloseDB  func() error `name:"dbCloser"`
}

func main() {
	code := 0
	c := dig_container.New(core.NewConfig())

	err := c.Invoke(func(p params) {
		defer func() {
			if err := p.CloseDB(); err != nil {
				p.Logger.Error("closing database", err)
			}
		}()

		cli := newCommandLine(p.Users, p.Validate, user.NewServiceOptions(p.Conf))
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			code = 1
		}
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		code = 1
	}
	os.Exit(code)
}
