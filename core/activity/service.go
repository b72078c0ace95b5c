package activity

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
	"github.com/academia/lms/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("activity not found")
	ErrOverviewNotFound = core.NewNotFoundError("overview not found")

	errActivityExists  = core.NewValidationError(nil, core.FieldError{Field: "module_id", Error: "this student already has an activity for this module"})
	errOverviewExists  = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this user already has an overview"})
	errUnknownStudent  = core.NewValidationError(nil, core.FieldError{Field: "student_id", Error: "user not found"})
	errUnknownUser     = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "user not found"})
	errUnknownModule   = core.NewValidationError(nil, core.FieldError{Field: "module_id", Error: "module not found"})
	errUnknownActivity = core.NewValidationError(nil, core.FieldError{Field: "activities", Error: "activity not found"})
	errAdminOnly       = core.NewPermissionError("only admins can do this")
	errNotOwner        = core.NewPermissionError("you can only access your own records")
)

type (
	Repository interface {
		// RecordProgress creates the Activity of (studentID, moduleID) or raises its progress to progress.
		// An existing Activity is left untouched unless progress exceeds its stored value.
		RecordProgress(ctx context.Context, studentID, moduleID, progress int, now time.Time, exec ...core.DBExecutor) (Activity, error)
		// CompleteModule sets the progress of (studentID, moduleID) to 100 and its DateUpdated to now.
		CompleteModule(ctx context.Context, studentID, moduleID int, now time.Time, exec ...core.DBExecutor) (Activity, error)
		CreateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
		GetActivity(ctx context.Context, id int, exec ...core.DBExecutor) (Activity, error)
		// QueryActivities returns activities ordered by most recently updated first.
		QueryActivities(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Activity, error)
		UpdateActivity(ctx context.Context, act Activity, exec ...core.DBExecutor) (Activity, error)
		DeleteActivity(ctx context.Context, id int, exec ...core.DBExecutor) error
		ProgressByModule(ctx context.Context, studentID int, moduleIDs []int, exec ...core.DBExecutor) (map[int]int, error)
		// CountStudents returns the number of distinct students with an activity on one of moduleIDs.
		CountStudents(ctx context.Context, moduleIDs []int, exec ...core.DBExecutor) (int, error)

		CreateTestHistory(ctx context.Context, h TestHistory, exec ...core.DBExecutor) (TestHistory, error)
		// QueryTestHistories returns histories joined with their lesson and module, newest first.
		QueryTestHistories(ctx context.Context, filter *HistoryFilter, exec ...core.DBExecutor) ([]TestHistory, error)

		CreateOverview(ctx context.Context, ov UserOverview, exec ...core.DBExecutor) (UserOverview, error)
		GetOverview(ctx context.Context, id int, exec ...core.DBExecutor) (UserOverview, error)
		QueryOverviews(ctx context.Context, filter *OverviewFilter, exec ...core.DBExecutor) ([]UserOverview, error)
		UpdateOverview(ctx context.Context, ov UserOverview, exec ...core.DBExecutor) (UserOverview, error)
		DeleteOverview(ctx context.Context, id int, exec ...core.DBExecutor) error
	}

	Service interface {
		RecordLessonView(ctx context.Context, viewer user.User, moduleID, lessonID int) (int, error)
		SubmitExam(ctx context.Context, student user.User, lessonID int, answers map[string]interface{}) (ExamSubmission, error)
		ExamHistory(ctx context.Context, student user.User) ([]TestHistory, error)
		CompleteModule(ctx context.Context, student user.User, moduleID int) (Activity, error)

		StudentStats(ctx context.Context, student user.User) (StudentStats, error)
		TeacherStats(ctx context.Context, teacher user.User) (TeacherStats, error)
		AdminStats(ctx context.Context) (AdminStats, error)

		QueryActivities(ctx context.Context, viewer user.User, filter *QueryFilter) ([]Activity, error)
		GetActivity(ctx context.Context, viewer user.User, id int) (Activity, error)
		CreateActivity(ctx context.Context, actor user.User, na NewActivity) (Activity, error)
		UpdateActivity(ctx context.Context, actor user.User, act Activity, ua UpdateActivity) (Activity, error)
		DeleteActivity(ctx context.Context, actor user.User, act Activity) error

		QueryOverviews(ctx context.Context, viewer user.User, filter *OverviewFilter) ([]UserOverview, error)
		GetOverview(ctx context.Context, viewer user.User, id int) (UserOverview, error)
		CreateOverview(ctx context.Context, actor user.User, no NewOverview) (UserOverview, error)
		UpdateOverview(ctx context.Context, actor user.User, ov UserOverview, uo UpdateOverview) (UserOverview, error)
		DeleteOverview(ctx context.Context, actor user.User, ov UserOverview) error
	}

	service struct {
		db      core.DB
		repo    Repository
		courses course.Repository
		users   user.Repository
		now     func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, courses course.Repository, users user.Repository) Service {
	return &service{
		db:      db,
		repo:    repo,
		courses: courses,
		users:   users,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *service) readableModule(ctx context.Context, viewer user.User, id int) (course.Module, error) {
	mod, err := svc.courses.GetModule(ctx, id)
	if err != nil {
		return course.Module{}, err
	}
	if !course.CanRead(viewer, mod) {
		return course.Module{}, course.ErrModuleNotFound
	}
	return mod, nil
}

func (svc *service) RecordLessonView(ctx context.Context, viewer user.User, moduleID, lessonID int) (int, error) {
	mod, err := svc.readableModule(ctx, viewer, moduleID)
	if err != nil {
		return 0, err
	}
	lsn, err := svc.courses.GetLesson(ctx, lessonID)
	if err != nil {
		return 0, err
	}
	if lsn.ModuleID != mod.ID {
		return 0, course.ErrLessonNotFound
	}

	lessons, err := svc.courses.QueryLessons(ctx, &course.LessonFilter{ModuleID: mod.ID})
	if err != nil {
		return 0, errors.Wrap(err, "querying module lessons")
	}
	ids := make([]int, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	progress, err := course.ComputeProgress(ids, lsn.ID)
	if err != nil {
		return 0, err
	}

	if _, err = svc.repo.RecordProgress(ctx, viewer.ID, mod.ID, progress, svc.now()); err != nil {
		return 0, errors.Wrap(err, "recording progress")
	}
	return progress, nil
}

func (svc *service) SubmitExam(ctx context.Context, student user.User, lessonID int, answers map[string]interface{}) (ExamSubmission, error) {
	lsn, err := svc.courses.GetLesson(ctx, lessonID)
	if err != nil {
		if err == course.ErrLessonNotFound {
			return ExamSubmission{}, course.ErrExamNotFound
		}
		return ExamSubmission{}, err
	}
	if !lsn.IsExam() {
		return ExamSubmission{}, course.ErrExamNotFound
	}
	if _, err = svc.readableModule(ctx, student, lsn.ModuleID); err != nil {
		if err == course.ErrModuleNotFound {
			return ExamSubmission{}, course.ErrExamNotFound
		}
		return ExamSubmission{}, err
	}

	if answers == nil {
		answers = make(map[string]interface{})
	}
	result := course.ScoreExam(lsn.Content, answers)
	now := svc.now()

	var h TestHistory
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		h, err = svc.repo.CreateTestHistory(ctx, TestHistory{
			StudentID:      student.ID,
			LessonID:       lsn.ID,
			Score:          result.Score,
			MaxScore:       result.MaxScore,
			Answers:        answers,
			CorrectAnswers: result.CorrectAnswers,
			DateFinished:   now,
		}, tx)
		if err != nil {
			return errors.Wrap(err, "creating test history")
		}
		// submitting an exam completes its module whatever the score
		_, err = svc.repo.CompleteModule(ctx, student.ID, lsn.ModuleID, now, tx)
		return errors.Wrap(err, "recording progress")
	})
	if err != nil {
		return ExamSubmission{}, err
	}

	return ExamSubmission{
		HistoryID:  h.ID,
		Score:      result.Score,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage(),
	}, nil
}

func (svc *service) ExamHistory(ctx context.Context, student user.User) ([]TestHistory, error) {
	history, err := svc.repo.QueryTestHistories(ctx, &HistoryFilter{StudentID: student.ID})
	if err != nil {
		return nil, err
	}
	for i := range history {
		history[i].Percentage = percentage(history[i].Score, history[i].MaxScore)
	}
	return history, nil
}

func (svc *service) CompleteModule(ctx context.Context, student user.User, moduleID int) (Activity, error) {
	if _, err := svc.courses.GetModule(ctx, moduleID); err != nil {
		return Activity{}, err
	}
	return svc.repo.CompleteModule(ctx, student.ID, moduleID, svc.now())
}

// lessonsCount returns the number of lessons of each of moduleIDs, along with the lessons themselves.
func (svc *service) lessonsCount(ctx context.Context, moduleIDs []int) (map[int]int, []course.Lesson, error) {
	counts := make(map[int]int, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return counts, nil, nil
	}
	lessons, err := svc.courses.QueryLessons(ctx, &course.LessonFilter{ModuleIDs: moduleIDs})
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying lessons")
	}
	for _, l := range lessons {
		counts[l.ModuleID]++
	}
	return counts, lessons, nil
}

func (svc *service) StudentStats(ctx context.Context, student user.User) (StudentStats, error) {
	acts, err := svc.repo.QueryActivities(ctx, &QueryFilter{StudentID: student.ID})
	if err != nil {
		return StudentStats{}, errors.Wrap(err, "querying activities")
	}

	ids := make([]int, 0, len(acts))
	for _, act := range acts {
		ids = append(ids, act.ModuleID)
	}
	mods := make(map[int]course.Module, len(ids))
	if len(ids) > 0 {
		list, err := svc.courses.QueryModules(ctx, &course.ModuleFilter{IDs: ids}, nil)
		if err != nil {
			return StudentStats{}, errors.Wrap(err, "querying modules")
		}
		for _, m := range list {
			mods[m.ID] = m
		}
	}
	counts, _, err := svc.lessonsCount(ctx, ids)
	if err != nil {
		return StudentStats{}, err
	}
	return computeStudentStats(acts, mods, counts, svc.now()), nil
}

func (svc *service) TeacherStats(ctx context.Context, teacher user.User) (TeacherStats, error) {
	mods, err := svc.courses.QueryModules(ctx, &course.ModuleFilter{AuthorID: teacher.ID}, nil)
	if err != nil {
		return TeacherStats{}, errors.Wrap(err, "querying modules")
	}
	ids := make([]int, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	_, lessons, err := svc.lessonsCount(ctx, ids)
	if err != nil {
		return TeacherStats{}, err
	}
	students := 0
	if len(ids) > 0 {
		if students, err = svc.repo.CountStudents(ctx, ids); err != nil {
			return TeacherStats{}, errors.Wrap(err, "counting students")
		}
	}
	return computeTeacherStats(mods, lessons, students, svc.now()), nil
}

func (svc *service) AdminStats(ctx context.Context) (AdminStats, error) {
	var (
		stats AdminStats
		err   error
	)
	if stats.TotalUsers, err = svc.users.CountUsers(ctx, nil); err != nil {
		return AdminStats{}, errors.Wrap(err, "counting users")
	}
	if stats.TotalTeachers, err = svc.users.CountUsers(ctx, &user.QueryFilter{Role: user.RoleTeacher}); err != nil {
		return AdminStats{}, errors.Wrap(err, "counting teachers")
	}
	if stats.TotalStudents, err = svc.users.CountUsers(ctx, &user.QueryFilter{Role: user.RoleStudent}); err != nil {
		return AdminStats{}, errors.Wrap(err, "counting students")
	}
	if stats.TotalModules, err = svc.courses.CountModules(ctx, nil); err != nil {
		return AdminStats{}, errors.Wrap(err, "counting modules")
	}
	return stats, nil
}

// authoredModuleIDs returns the ids of the modules authored by usr.
func (svc *service) authoredModuleIDs(ctx context.Context, usr user.User) ([]int, error) {
	mods, err := svc.courses.QueryModules(ctx, &course.ModuleFilter{AuthorID: usr.ID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying authored modules")
	}
	ids := make([]int, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// canView reports whether viewer may read act: admins see everything, teachers the activities on their
// modules and students their own.
func (svc *service) canView(ctx context.Context, viewer user.User, act Activity) (bool, error) {
	switch {
	case viewer.IsAdmin(), act.StudentID == viewer.ID:
		return true, nil
	case viewer.IsTeacher():
		mod, err := svc.courses.GetModule(ctx, act.ModuleID)
		if err != nil {
			return false, errors.Wrap(err, "finding activity module")
		}
		return mod.Author.ID == viewer.ID, nil
	}
	return false, nil
}

func (svc *service) QueryActivities(ctx context.Context, viewer user.User, filter *QueryFilter) ([]Activity, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	switch {
	case viewer.IsAdmin():
	case viewer.IsTeacher():
		ids, err := svc.authoredModuleIDs(ctx, viewer)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []Activity{}, nil
		}
		filter.ModuleIDs = ids
	default:
		filter.StudentID = viewer.ID
	}
	return svc.repo.QueryActivities(ctx, filter)
}

func (svc *service) GetActivity(ctx context.Context, viewer user.User, id int) (Activity, error) {
	act, err := svc.repo.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, err
	}
	ok, err := svc.canView(ctx, viewer, act)
	if err != nil {
		return Activity{}, err
	}
	if !ok {
		return Activity{}, ErrNotFound
	}
	return act, nil
}

func (svc *service) CreateActivity(ctx context.Context, actor user.User, na NewActivity) (Activity, error) {
	if !actor.IsAdmin() {
		return Activity{}, errAdminOnly
	}
	if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: na.StudentID}); err != nil {
		if err == user.ErrNotFound {
			return Activity{}, errUnknownStudent
		}
		return Activity{}, err
	}
	if _, err := svc.courses.GetModule(ctx, na.ModuleID); err != nil {
		if err == course.ErrModuleNotFound {
			return Activity{}, errUnknownModule
		}
		return Activity{}, err
	}
	existing, err := svc.repo.QueryActivities(ctx, &QueryFilter{StudentID: na.StudentID, ModuleID: na.ModuleID})
	if err != nil {
		return Activity{}, errors.Wrap(err, "checking existing activity")
	}
	if len(existing) > 0 {
		return Activity{}, errActivityExists
	}

	now := svc.now()
	return svc.repo.CreateActivity(ctx, Activity{
		StudentID:   na.StudentID,
		ModuleID:    na.ModuleID,
		Progress:    na.Progress,
		DateCreated: now,
		DateUpdated: now,
	})
}

func (svc *service) UpdateActivity(ctx context.Context, actor user.User, act Activity, ua UpdateActivity) (Activity, error) {
	if !actor.IsAdmin() {
		return Activity{}, errAdminOnly
	}
	if ua.Progress != nil {
		act.Progress = *ua.Progress
	}
	act.DateUpdated = svc.now()
	return svc.repo.UpdateActivity(ctx, act)
}

func (svc *service) DeleteActivity(ctx context.Context, actor user.User, act Activity) error {
	if !actor.IsAdmin() {
		return errAdminOnly
	}
	return svc.repo.DeleteActivity(ctx, act.ID)
}

func (svc *service) QueryOverviews(ctx context.Context, viewer user.User, filter *OverviewFilter) ([]UserOverview, error) {
	if filter == nil {
		filter = new(OverviewFilter)
	}
	if !viewer.IsAdmin() {
		filter.UserID = viewer.ID
	}
	return svc.repo.QueryOverviews(ctx, filter)
}

func (svc *service) GetOverview(ctx context.Context, viewer user.User, id int) (UserOverview, error) {
	ov, err := svc.repo.GetOverview(ctx, id)
	if err != nil {
		return UserOverview{}, err
	}
	if !viewer.IsAdmin() && ov.UserID != viewer.ID {
		return UserOverview{}, ErrOverviewNotFound
	}
	return ov, nil
}

// checkOverviewRefs makes sure the module and activities referenced by an overview exist and belong to userID.
func (svc *service) checkOverviewRefs(ctx context.Context, userID int, moduleID *int, activityIDs []int) error {
	if moduleID != nil && *moduleID != 0 {
		if _, err := svc.courses.GetModule(ctx, *moduleID); err != nil {
			if err == course.ErrModuleNotFound {
				return core.NewValidationError(nil, core.FieldError{Field: "last_module_learned_id", Error: "module not found"})
			}
			return err
		}
	}
	for _, id := range activityIDs {
		act, err := svc.repo.GetActivity(ctx, id)
		if err != nil {
			if err == ErrNotFound {
				return errUnknownActivity
			}
			return err
		}
		if act.StudentID != userID {
			return errUnknownActivity
		}
	}
	return nil
}

func (svc *service) CreateOverview(ctx context.Context, actor user.User, no NewOverview) (UserOverview, error) {
	if !actor.IsAdmin() && no.UserID != actor.ID {
		return UserOverview{}, errNotOwner
	}
	if _, err := svc.users.GetUser(ctx, user.GetFilter{ID: no.UserID}); err != nil {
		if err == user.ErrNotFound {
			return UserOverview{}, errUnknownUser
		}
		return UserOverview{}, err
	}
	existing, err := svc.repo.QueryOverviews(ctx, &OverviewFilter{UserID: no.UserID})
	if err != nil {
		return UserOverview{}, errors.Wrap(err, "checking existing overview")
	}
	if len(existing) > 0 {
		return UserOverview{}, errOverviewExists
	}
	if err = svc.checkOverviewRefs(ctx, no.UserID, no.LastModuleLearnedID, no.ActivityIDs); err != nil {
		return UserOverview{}, err
	}

	now := svc.now()
	ov := UserOverview{
		UserID:      no.UserID,
		ActivityIDs: no.ActivityIDs,
		DateCreated: now,
		DateUpdated: now,
	}
	if no.LastModuleLearnedID != nil && *no.LastModuleLearnedID != 0 {
		ov.LastModuleLearnedID = no.LastModuleLearnedID
	}
	if ov.ActivityIDs == nil {
		ov.ActivityIDs = []int{}
	}

	var created UserOverview
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		created, err = svc.repo.CreateOverview(ctx, ov, tx)
		return err
	})
	if err != nil {
		return UserOverview{}, err
	}
	return created, nil
}

func (svc *service) UpdateOverview(ctx context.Context, actor user.User, ov UserOverview, uo UpdateOverview) (UserOverview, error) {
	if !actor.IsAdmin() && ov.UserID != actor.ID {
		return UserOverview{}, errNotOwner
	}
	var activityIDs []int
	if uo.ActivityIDs != nil {
		activityIDs = *uo.ActivityIDs
	}
	if err := svc.checkOverviewRefs(ctx, ov.UserID, uo.LastModuleLearnedID, activityIDs); err != nil {
		return UserOverview{}, err
	}

	if uo.LastModuleLearnedID != nil {
		if *uo.LastModuleLearnedID == 0 {
			ov.LastModuleLearnedID = nil
		} else {
			ov.LastModuleLearnedID = uo.LastModuleLearnedID
		}
	}
	if uo.ActivityIDs != nil {
		ov.ActivityIDs = activityIDs
		if ov.ActivityIDs == nil {
			ov.ActivityIDs = []int{}
		}
	}
	ov.DateUpdated = svc.now()

	var updated UserOverview
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		var err error
		updated, err = svc.repo.UpdateOverview(ctx, ov, tx)
		return err
	})
	if err != nil {
		return UserOverview{}, err
	}
	return updated, nil
}

func (svc *service) DeleteOverview(ctx context.Context, actor user.User, ov UserOverview) error {
	if !actor.IsAdmin() && ov.UserID != actor.ID {
		return errNotOwner
	}
	return svc.repo.DeleteOverview(ctx, ov.ID)
}
