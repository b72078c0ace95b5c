package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
)

// completeModule marks moduleID, or the first module when 0, as completed by the user uname.
func (cli *commandLine) completeModule(ctx context.Context, uname string, moduleID int) (activity.Activity, error) {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return activity.Activity{}, err
	}

	if moduleID == 0 {
		mods, err := cli.crsRepo.QueryModules(ctx, nil, []core.DBOrdering{{Field: "id", Ascending: true}})
		if err != nil {
			return activity.Activity{}, errors.Wrap(err, "querying modules")
		}
		if len(mods) == 0 {
			return activity.Activity{}, errors.New("no modules found")
		}
		moduleID = mods[0].ID
	}
	return cli.actSvc.CompleteModule(ctx, usr, moduleID)
}

// printProgress lists the progress of uname in every module they started.
func (cli *commandLine) printProgress(ctx context.Context, uname string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	acts, err := cli.actRepo.QueryActivities(ctx, &activity.QueryFilter{StudentID: usr.ID})
	if err != nil {
		return err
	}

	cli.printf("Current progress of %q:\n", usr.Username)
	if len(acts) == 0 {
		cli.printf("  No activities found\n")
		return nil
	}
	for _, act := range acts {
		title := "?"
		if mod, err := cli.crsRepo.GetModule(ctx, act.ModuleID); err == nil {
			title = mod.Title
		} else if err != course.ErrModuleNotFound {
			return err
		}
		if act.IsCompleted() {
			cli.printf("  %s: COMPLETED\n", title)
		} else {
			cli.printf("  %s: %d%% in progress\n", title, act.Progress)
		}
	}
	return nil
}

func (cli *commandLine) completeModuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completemodule",
		Short: "Mark a module as completed by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			uname, _ := cmd.Flags().GetString("user")
			moduleID, _ := cmd.Flags().GetInt("module-id")

			act, err := cli.completeModule(cmd.Context(), uname, moduleID)
			if err != nil {
				return err
			}
			cli.printf("Module %d marked as completed for user %q\n\n", act.ModuleID, uname)
			return cli.printProgress(cmd.Context(), uname)
		},
	}
	cmd.Flags().String("user", defaultAdminUsername, "The user's username or email")
	cmd.Flags().Int("module-id", 0, "The module to complete (default: the first module)")
	return cmd
}
