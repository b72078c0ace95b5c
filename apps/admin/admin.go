package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/academia/lms/core/user"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@lms.local"
	defaultAdminPassword = "admin123"
	defaultInstitution   = "Taneyan Lanjeng University"
)

// ensureRoles creates the missing built-in roles.
func (cli *commandLine) ensureRoles(ctx context.Context) error {
	for _, name := range user.RoleNames {
		_, err := cli.usrRepo.GetRole(ctx, user.RoleFilter{Name: name})
		if err == nil {
			cli.printf("%s role already exists\n", name)
			continue
		}
		if err != user.ErrRoleNotFound {
			return errors.Wrapf(err, "finding role %s", name)
		}
		now := time.Now().UTC()
		if _, err = cli.usrRepo.CreateRole(ctx, user.Role{Name: name, DateCreated: now, DateUpdated: now}); err != nil {
			return errors.Wrapf(err, "creating role %s", name)
		}
		cli.printf("Created %s role\n", name)
	}
	return nil
}

func (cli *commandLine) initAdmin(ctx context.Context) error {
	if err := cli.ensureRoles(ctx); err != nil {
		return err
	}

	_, err := cli.usrSvc.GetByUsernameOrEmail(ctx, defaultAdminUsername)
	switch {
	case err == nil:
		cli.printf("Default admin user already exists\n")
		return nil
	case err != user.ErrNotFound:
		return err
	}

	nu := user.NewUser{
		Username:    defaultAdminUsername,
		Email:       defaultAdminEmail,
		Password:    defaultAdminPassword,
		FullName:    "Administrator",
		Institution: defaultInstitution,
	}
	if _, err = cli.usrSvc.CreateAdmin(ctx, nu); err != nil {
		return err
	}
	cli.printf("Created default admin user: %s\n  Email: %s\n  Password: %s\n", nu.Username, nu.Email, nu.Password)
	cli.printf("Change this password with `admin resetpassword --username %s`\n", nu.Username)
	return nil
}

func (cli *commandLine) initAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initadmin",
		Short: "Create the built-in roles and the default admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.initAdmin(cmd.Context())
		},
	}
}

func (cli *commandLine) createAdmin(ctx context.Context, nu user.NewUser) (user.User, error) {
	if _, err := cli.usrSvc.GetRoleByName(ctx, user.RoleAdmin); err != nil {
		if err == user.ErrRoleNotFound {
			return user.User{}, errors.New("Admin role does not exist, run initadmin first")
		}
		return user.User{}, err
	}
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return user.User{}, err
	}
	return cli.usrSvc.CreateAdmin(ctx, nu)
}

func (cli *commandLine) createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createadmin",
		Short: "Create an admin user. The password will be prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var nu user.NewUser
			nu.Username, _ = cmd.Flags().GetString("username")
			nu.Email, _ = cmd.Flags().GetString("email")
			nu.FullName, _ = cmd.Flags().GetString("full-name")
			nu.Institution, _ = cmd.Flags().GetString("institution")
			nu.ProfilePhoto, _ = cmd.Flags().GetString("profile-photo")

			pwd, err := cli.readPassword("Enter password")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Usage()
				return errHelp
			}
			nu.Password = pwd

			usr, err := cli.createAdmin(cmd.Context(), nu)
			if err != nil {
				return err
			}
			cli.printf("Successfully created admin user: %s\n  Email: %s\n  Full Name: %s\n  Institution: %s\n",
				usr.Username, usr.Email, usr.FullName, usr.Institution)
			return nil
		},
	}
	cmd.Flags().String("username", "", "Admin username")
	cmd.Flags().String("email", "", "Admin email")
	cmd.Flags().String("full-name", "", "Admin full name")
	cmd.Flags().String("institution", defaultInstitution, "Institution name")
	cmd.Flags().String("profile-photo", "", "Profile photo URL")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("full-name")
	return cmd
}
