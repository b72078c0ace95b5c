package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
)

// seeded tables in deletion order; roles are kept.
var seededTables = []string{
	"headlines",
	"user_overview_activities",
	"user_overviews",
	"test_histories",
	"activities",
	"lessons",
	"modules",
	"users",
}

type (
	seedUser struct {
		username, email, fullName, institution, semester string
	}

	seedModule struct {
		title   string
		author  int // index in seedTeachers
		days    int // until deadline
		lessons []string
	}
)

var (
	seedTeachers = []seedUser{
		{"teacher_john", "john.doe@lms.local", "John Doe", defaultInstitution, ""},
		{"teacher_jane", "jane.smith@lms.local", "Jane Smith", defaultInstitution, ""},
	}
	seedStudents = []seedUser{
		{"student_alice", "alice@student.lms.local", "Alice Johnson", defaultInstitution, "3"},
		{"student_bob", "bob@student.lms.local", "Bob Wilson", defaultInstitution, "2"},
		{"student_charlie", "charlie@student.lms.local", "Charlie Brown", defaultInstitution, "4"},
		{"student_diana", "diana@student.lms.local", "Diana Prince", "State University", "5"},
		{"student_ethan", "ethan@student.lms.local", "Ethan Hunt", "State University", "1"},
	}
	seedModules = []seedModule{
		{"Introduction to Programming", 0, 30, []string{
			"Welcome to Programming: the basics of programming concepts.",
			"Variables and Data Types: store and manipulate data in your programs.",
			"Control Structures: if-else statements and loops.",
			"Functions: organize your code into reusable blocks.",
		}},
		{"Data Structures and Algorithms", 0, 45, []string{
			"Arrays and Lists: the fundamental data structures.",
			"Stacks and Queues: LIFO and FIFO data structures.",
			"Trees and Graphs: hierarchical and network data structures.",
			"Sorting and Searching: efficient ways to organize and find data.",
		}},
		{"Web Development Fundamentals", 1, 60, []string{
			"HTML Basics: structure of web pages.",
			"CSS Styling: layout and presentation.",
			"JavaScript Essentials: making pages interactive.",
		}},
		{"Database Management Systems", 1, 40, []string{
			"Relational Model: tables, keys and relations.",
			"SQL Queries: selecting, joining and aggregating data.",
			"Normalization: designing consistent schemas.",
		}},
		{"Object-Oriented Programming", 0, 35, []string{
			"Classes and Objects: modelling the world in code.",
			"Inheritance and Composition: reusing behaviour.",
			"Interfaces and Polymorphism: programming to contracts.",
		}},
	}
)

const (
	seedTeacherPassword = "teacher123"
	seedStudentPassword = "student123"
)

type seedSummary struct {
	Users, Modules, Lessons, Activities, Overviews, Histories int
}

func (cli *commandLine) clearData(ctx context.Context, tx core.DBExecutor) error {
	for _, table := range seededTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "clearing %s", table)
		}
	}
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, tx core.DBExecutor, su seedUser, pwd string, role user.Role, now time.Time) (user.User, error) {
	usr := user.User{
		Username:       su.username,
		Email:          su.email,
		FullName:       su.fullName,
		Institution:    su.institution,
		Semester:       su.semester,
		Role:           &role,
		IsActive:       true,
		IsStaff:        role.Name == user.RoleAdmin,
		DateRegistered: now,
		DateUpdated:    now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}
	usr, err := cli.usrRepo.CreateUser(ctx, usr, tx)
	if err != nil {
		return user.User{}, errors.Wrapf(err, "creating user %s", su.username)
	}
	return usr, nil
}

// seed replaces all data but roles with a demo data set.
func (cli *commandLine) seed(ctx context.Context) (seedSummary, error) {
	var sum seedSummary
	if err := cli.ensureRoles(ctx); err != nil {
		return sum, err
	}

	err := core.RunInTx(ctx, cli.db, func(tx core.DBTransactor) error {
		cli.printf("Clearing existing data...\n")
		if err := cli.clearData(ctx, tx); err != nil {
			return err
		}

		roles := make(map[string]user.Role, len(user.RoleNames))
		for _, name := range user.RoleNames {
			role, err := cli.usrRepo.GetRole(ctx, user.RoleFilter{Name: name}, tx)
			if err != nil {
				return errors.Wrapf(err, "finding role %s", name)
			}
			roles[name] = role
		}

		cli.printf("Creating users...\n")
		now := time.Now().UTC()
		admin := seedUser{defaultAdminUsername, defaultAdminEmail, "Administrator", defaultInstitution, ""}
		if _, err := cli.seedUser(ctx, tx, admin, defaultAdminPassword, roles[user.RoleAdmin], now); err != nil {
			return err
		}
		teachers := make([]user.User, 0, len(seedTeachers))
		for _, su := range seedTeachers {
			usr, err := cli.seedUser(ctx, tx, su, seedTeacherPassword, roles[user.RoleTeacher], now)
			if err != nil {
				return err
			}
			teachers = append(teachers, usr)
		}
		students := make([]user.User, 0, len(seedStudents))
		for _, su := range seedStudents {
			usr, err := cli.seedUser(ctx, tx, su, seedStudentPassword, roles[user.RoleStudent], now)
			if err != nil {
				return err
			}
			students = append(students, usr)
		}
		sum.Users = 1 + len(teachers) + len(students)

		cli.printf("Creating modules and lessons...\n")
		mods := make([]course.Module, 0, len(seedModules))
		exams := make([]course.Lesson, 0, len(seedModules))
		for _, sm := range seedModules {
			author := teachers[sm.author]
			mod, err := cli.crsRepo.CreateModule(ctx, course.Module{
				Title:       sm.title,
				Description: fmt.Sprintf("Learn the essentials of %s.", sm.title),
				Deadline:    now.AddDate(0, 0, sm.days).Truncate(time.Second),
				Author:      course.Author{ID: author.ID, Username: author.Username, FullName: author.FullName},
				IsPublished: true,
				DateCreated: now,
				DateUpdated: now,
			}, tx)
			if err != nil {
				return errors.Wrapf(err, "creating module %q", sm.title)
			}
			for i, content := range sm.lessons {
				_, err = cli.crsRepo.CreateLesson(ctx, course.Lesson{
					ModuleID:        mod.ID,
					Title:           fmt.Sprintf("Lesson %d", i+1),
					Content:         content,
					LessonType:      course.LessonTypeLesson,
					Order:           i + 1,
					DurationMinutes: 30,
					IsPublished:     true,
					DateCreated:     now,
					DateUpdated:     now,
				}, tx)
				if err != nil {
					return errors.Wrapf(err, "creating lesson of %q", sm.title)
				}
			}
			exam, err := cli.crsRepo.CreateLesson(ctx, course.Lesson{
				ModuleID:        mod.ID,
				Title:           sm.title + " - Final Exam",
				Content:         newExamContent(sm.title),
				LessonType:      course.LessonTypeExam,
				Order:           len(sm.lessons) + 1,
				DurationMinutes: 60,
				IsPublished:     true,
				DateCreated:     now,
				DateUpdated:     now,
			}, tx)
			if err != nil {
				return errors.Wrapf(err, "creating exam of %q", sm.title)
			}
			mods = append(mods, mod)
			exams = append(exams, exam)
			sum.Lessons += len(sm.lessons) + 1
		}
		sum.Modules = len(mods)

		cli.printf("Creating activities and overviews...\n")
		for _, student := range students {
			var (
				actIDs []int
				best   activity.Activity
			)
			for i, mod := range mods {
				act, err := cli.actRepo.CreateActivity(ctx, activity.Activity{
					StudentID:   student.ID,
					ModuleID:    mod.ID,
					Progress:    min((i+1)*20, 100),
					DateCreated: now,
					DateUpdated: now,
				}, tx)
				if err != nil {
					return errors.Wrap(err, "creating activity")
				}
				actIDs = append(actIDs, act.ID)
				if act.Progress > best.Progress {
					best = act
				}
				sum.Activities++
			}
			_, err := cli.actRepo.CreateOverview(ctx, activity.UserOverview{
				UserID:              student.ID,
				LastModuleLearnedID: &best.ModuleID,
				ActivityIDs:         actIDs,
				DateCreated:         now,
				DateUpdated:         now,
			}, tx)
			if err != nil {
				return errors.Wrap(err, "creating overview")
			}
			sum.Overviews++
		}

		cli.printf("Creating test history...\n")
		answers := map[string]interface{}{"1": "A", "2": "A", "3": "B"}
		for _, student := range students[:3] {
			for _, exam := range exams[:2] {
				res := course.ScoreExam(exam.Content, answers)
				pct := res.Percentage()
				_, err := cli.actRepo.CreateTestHistory(ctx, activity.TestHistory{
					StudentID:      student.ID,
					LessonID:       exam.ID,
					Score:          res.Score,
					MaxScore:       res.MaxScore,
					Percentage:     &pct,
					Answers:        answers,
					CorrectAnswers: res.CorrectAnswers,
					DateFinished:   now,
				}, tx)
				if err != nil {
					return errors.Wrap(err, "creating test history")
				}
				sum.Histories++
			}
		}
		return nil
	})
	return sum, err
}

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Replace all data but roles with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := cli.seed(cmd.Context())
			if err != nil {
				return err
			}
			cli.printf("\n=== Database Seeding Complete ===\n")
			cli.printf("Users: %d\nModules: %d\nLessons: %d\nActivities: %d\nUser Overviews: %d\nTest History: %d\n",
				sum.Users, sum.Modules, sum.Lessons, sum.Activities, sum.Overviews, sum.Histories)
			cli.printf("\n=== Login Credentials ===\n")
			cli.printf("Admin: username=%s, password=%s\n", defaultAdminUsername, defaultAdminPassword)
			cli.printf("Teachers: username=teacher_john/teacher_jane, password=%s\n", seedTeacherPassword)
			cli.printf("Students: username=student_alice/bob/charlie/diana/ethan, password=%s\n", seedStudentPassword)
			return nil
		},
	}
}
