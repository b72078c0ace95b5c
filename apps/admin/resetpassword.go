package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			uname, _ := cmd.Flags().GetString("username")
			if uname == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.readPassword("Enter password")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			if err := cli.usrSvc.ResetPassword(cmd.Context(), uname, pwd); err != nil {
				return err
			}
			cli.printf("Password of %q updated\n", uname)
			return nil
		},
	}
	cmd.Flags().String("username", "", "The user's username or email. The password will be prompted next.")
	return cmd
}
