package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	engine   string
	out      io.Writer
	validate *validator.Validate
	usrSvc   user.Service
	usrRepo  user.Repository
	crsRepo  course.Repository
	actSvc   activity.Service
	actRepo  activity.Repository
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// readPassword prompts for a password on stdin without echoing it.
func (cli *commandLine) readPassword(prompt string) (string, error) {
	cli.printf("%s: ", prompt)
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "LMS administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	root.AddCommand(
		cli.migrateCmd(),
		cli.initAdminCmd(),
		cli.createAdminCmd(),
		cli.resetPasswordCmd(),
		cli.seedCmd(),
		cli.createExamCmd(),
		cli.completeModuleCmd(),
	)
	return root
}

// run executes the command line args (without program name).
func (cli *commandLine) run(ctx context.Context, args []string) error {
	if args == nil {
		args = []string{} // cobra falls back to os.Args on nil
	}
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
