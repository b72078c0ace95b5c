package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/user"
)

var (
	// errors
	ErrModuleNotFound = core.NewNotFoundError("module not found")
	ErrLessonNotFound = core.NewNotFoundError("lesson not found")
	ErrExamNotFound   = core.NewNotFoundError("exam not found")

	errTitleExists     = core.NewValidationError(nil, core.FieldError{Field: "title", Error: "a module with this title already exists"})
	errOrderExists     = core.NewValidationError(nil, core.FieldError{Field: "order", Error: "a lesson with this order already exists in the module"})
	errPublishNoExam   = core.NewValidationError(nil, core.FieldError{Field: "is_published", Error: "a module needs at least one exam lesson before it can be published"})
	errLastExam        = core.NewValidationError(nil, core.FieldError{Field: "lesson_type", Error: "cannot remove the last exam of a published module"})
	errCannotAuthor    = core.NewPermissionError("only teachers and admins can manage modules")
	errNotModuleAuthor = core.NewPermissionError("only the module author or an admin can do this")
)

type (
	Repository interface {
		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		GetModule(ctx context.Context, id int, exec ...core.DBExecutor) (Module, error)
		QueryModules(ctx context.Context, filter *ModuleFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Module, error)
		CountModules(ctx context.Context, filter *ModuleFilter, exec ...core.DBExecutor) (int, error)
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error
		ModuleTitleExists(ctx context.Context, title string, excludeID int, exec ...core.DBExecutor) (bool, error)

		CreateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		GetLesson(ctx context.Context, id int, exec ...core.DBExecutor) (Lesson, error)
		// QueryLessons returns lessons ordered by module, order then id.
		QueryLessons(ctx context.Context, filter *LessonFilter, exec ...core.DBExecutor) ([]Lesson, error)
		CountLessons(ctx context.Context, filter *LessonFilter, exec ...core.DBExecutor) (int, error)
		UpdateLesson(ctx context.Context, lsn Lesson, exec ...core.DBExecutor) (Lesson, error)
		DeleteLesson(ctx context.Context, id int, exec ...core.DBExecutor) error
		NextLessonOrder(ctx context.Context, moduleID int, exec ...core.DBExecutor) (int, error)
		LessonOrderExists(ctx context.Context, moduleID, order, excludeID int, exec ...core.DBExecutor) (bool, error)
	}

	// ProgressSource provides the stored progress of a student per module.
	ProgressSource interface {
		ProgressByModule(ctx context.Context, studentID int, moduleIDs []int, exec ...core.DBExecutor) (map[int]int, error)
	}

	Service interface {
		CreateModule(ctx context.Context, actor user.User, nm NewModule) (Module, error)
		GetModule(ctx context.Context, id int) (Module, error)
		GetReadableModule(ctx context.Context, viewer user.User, id int) (Module, error)
		QueryModules(ctx context.Context, viewer user.User, filter *ModuleFilter, ordering []core.DBOrdering) ([]Module, error)
		CountModules(ctx context.Context, filter *ModuleFilter) (int, error)
		UpdateModule(ctx context.Context, actor user.User, mod Module, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, actor user.User, mod Module) error

		CreateLesson(ctx context.Context, actor user.User, nl NewLesson) (Lesson, error)
		GetLesson(ctx context.Context, id int) (Lesson, error)
		GetReadableLesson(ctx context.Context, viewer user.User, id int) (Lesson, error)
		QueryLessons(ctx context.Context, viewer user.User, filter *LessonFilter) ([]Lesson, error)
		CountLessons(ctx context.Context, filter *LessonFilter) (int, error)
		UpdateLesson(ctx context.Context, actor user.User, lsn Lesson, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, actor user.User, lsn Lesson) error

		Overview(ctx context.Context, viewer user.User) ([]ModuleOverview, error)
		ModuleDetail(ctx context.Context, viewer user.User, moduleID int) (ModuleOverview, error)
		LessonDetail(ctx context.Context, viewer user.User, moduleID, lessonID int) (LessonView, error)
	}

	service struct {
		db       core.DB
		repo     Repository
		progress ProgressSource
	}
)

var _ Service = (*service)(nil)

func NewService(db core.DB, repo Repository, progress ProgressSource) Service {
	return &service{
		db:       db,
		repo:     repo,
		progress: progress,
	}
}

func canAuthor(usr user.User) bool {
	return usr.IsAdmin() || usr.IsTeacher()
}

func canEdit(usr user.User, mod Module) bool {
	return usr.IsAdmin() || mod.Author.ID == usr.ID
}

// CanRead reports whether viewer may see mod: students only see published modules.
func CanRead(viewer user.User, mod Module) bool {
	return mod.IsPublished || canEdit(viewer, mod) || viewer.IsTeacher()
}

func (svc *service) checkTitle(ctx context.Context, title string, excludeID int, exec ...core.DBExecutor) error {
	exists, err := svc.repo.ModuleTitleExists(ctx, title, excludeID, exec...)
	if err != nil {
		return errors.Wrap(err, "checking module title")
	}
	if exists {
		return errTitleExists
	}
	return nil
}

func (svc *service) hasExam(ctx context.Context, moduleID int, exec core.DBExecutor) (int, error) {
	n, err := svc.repo.CountLessons(ctx, &LessonFilter{ModuleID: moduleID, LessonType: LessonTypeExam}, exec)
	return n, errors.Wrap(err, "counting exams")
}

func (svc *service) CreateModule(ctx context.Context, actor user.User, nm NewModule) (Module, error) {
	if !canAuthor(actor) {
		return Module{}, errCannotAuthor
	}
	// a brand new module has no exam yet
	if nm.IsPublished {
		return Module{}, errPublishNoExam
	}
	if err := svc.checkTitle(ctx, nm.Title, 0); err != nil {
		return Module{}, err
	}

	now := time.Now().UTC()
	mod := Module{
		Title:       nm.Title,
		Description: nm.Description,
		Deadline:    nm.Deadline.UTC(),
		Author:      Author{ID: actor.ID, Username: actor.Username, FullName: actor.FullName},
		DateCreated: now,
		DateUpdated: now,
	}
	if nm.CoverImage != "" {
		mod.CoverImage = &nm.CoverImage
	}
	return svc.repo.CreateModule(ctx, mod)
}

func (svc *service) GetModule(ctx context.Context, id int) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) GetReadableModule(ctx context.Context, viewer user.User, id int) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if !CanRead(viewer, mod) {
		return Module{}, ErrModuleNotFound
	}
	return mod, nil
}

func (svc *service) QueryModules(ctx context.Context, viewer user.User, filter *ModuleFilter, ordering []core.DBOrdering) ([]Module, error) {
	if !canAuthor(viewer) {
		if filter == nil {
			filter = new(ModuleFilter)
		}
		published := true
		filter.IsPublished = &published
	}
	return svc.repo.QueryModules(ctx, filter, ordering)
}

func (svc *service) CountModules(ctx context.Context, filter *ModuleFilter) (int, error) {
	return svc.repo.CountModules(ctx, filter)
}

// UpdateModule applies um to the stored state of mod. The exam check and the write share one transaction.
func (svc *service) UpdateModule(ctx context.Context, actor user.User, mod Module, um UpdateModule) (Module, error) {
	var updated Module
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		cur, err := svc.repo.GetModule(ctx, mod.ID, tx)
		if err != nil {
			return err
		}
		if !canEdit(actor, cur) {
			return errNotModuleAuthor
		}
		if um.Title != nil && *um.Title != cur.Title {
			if err := svc.checkTitle(ctx, *um.Title, cur.ID, tx); err != nil {
				return err
			}
			cur.Title = *um.Title
		}
		if um.Description != nil {
			cur.Description = *um.Description
		}
		if um.Deadline != nil {
			cur.Deadline = um.Deadline.UTC()
		}
		if um.CoverImage != nil {
			if *um.CoverImage == "" {
				cur.CoverImage = nil
			} else {
				cur.CoverImage = um.CoverImage
			}
		}
		if um.IsPublished != nil {
			if *um.IsPublished && !cur.IsPublished {
				n, err := svc.hasExam(ctx, cur.ID, tx)
				if err != nil {
					return err
				}
				if n == 0 {
					return errPublishNoExam
				}
			}
			cur.IsPublished = *um.IsPublished
		}
		cur.DateUpdated = time.Now().UTC()
		updated, err = svc.repo.UpdateModule(ctx, cur, tx)
		return err
	})
	if err != nil {
		return Module{}, err
	}
	return updated, nil
}

func (svc *service) DeleteModule(ctx context.Context, actor user.User, mod Module) error {
	if !canEdit(actor, mod) {
		return errNotModuleAuthor
	}
	return svc.repo.DeleteModule(ctx, mod.ID)
}

func (svc *service) CreateLesson(ctx context.Context, actor user.User, nl NewLesson) (Lesson, error) {
	mod, err := svc.repo.GetModule(ctx, nl.ModuleID)
	if err != nil {
		if err == ErrModuleNotFound {
			return Lesson{}, core.NewValidationError(nil, core.FieldError{Field: "module_id", Error: "module not found"})
		}
		return Lesson{}, err
	}
	if !canEdit(actor, mod) {
		return Lesson{}, errNotModuleAuthor
	}

	var lsn Lesson
	err = core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		var (
			order int
			err   error
		)
		if nl.Order != nil {
			order = *nl.Order
			exists, err := svc.repo.LessonOrderExists(ctx, mod.ID, order, 0, tx)
			if err != nil {
				return errors.Wrap(err, "checking lesson order")
			}
			if exists {
				return errOrderExists
			}
		} else if order, err = svc.repo.NextLessonOrder(ctx, mod.ID, tx); err != nil {
			return errors.Wrap(err, "getting next lesson order")
		}

		duration := defaultDurationMinutes
		if nl.DurationMinutes != nil {
			duration = *nl.DurationMinutes
		}
		now := time.Now().UTC()
		lsn, err = svc.repo.CreateLesson(ctx, Lesson{
			ModuleID:        mod.ID,
			Title:           nl.Title,
			Content:         nl.Content,
			LessonType:      nl.LessonType,
			Order:           order,
			DurationMinutes: duration,
			IsPublished:     nl.IsPublished,
			DateCreated:     now,
			DateUpdated:     now,
		}, tx)
		return err
	})
	if err != nil {
		return Lesson{}, err
	}
	return lsn, nil
}

func (svc *service) GetLesson(ctx context.Context, id int) (Lesson, error) {
	return svc.repo.GetLesson(ctx, id)
}

// GetReadableLesson returns the lesson as seen by viewer. Lessons of modules viewer cannot read are not found.
func (svc *service) GetReadableLesson(ctx context.Context, viewer user.User, id int) (Lesson, error) {
	lsn, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if _, err = svc.GetReadableModule(ctx, viewer, lsn.ModuleID); err != nil {
		if err == ErrModuleNotFound {
			return Lesson{}, ErrLessonNotFound
		}
		return Lesson{}, err
	}
	return forViewer(viewer, lsn), nil
}

func (svc *service) QueryLessons(ctx context.Context, viewer user.User, filter *LessonFilter) ([]Lesson, error) {
	lessons, err := svc.repo.QueryLessons(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !viewer.IsStudent() {
		return lessons, nil
	}

	// students only see lessons of published modules, without answer keys
	mods, err := svc.repo.QueryModules(ctx, &ModuleFilter{IsPublished: boolPtr(true)}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying published modules")
	}
	published := make(map[int]bool, len(mods))
	for _, m := range mods {
		published[m.ID] = true
	}
	visible := make([]Lesson, 0, len(lessons))
	for _, l := range lessons {
		if published[l.ModuleID] {
			visible = append(visible, forViewer(viewer, l))
		}
	}
	return visible, nil
}

func (svc *service) CountLessons(ctx context.Context, filter *LessonFilter) (int, error) {
	return svc.repo.CountLessons(ctx, filter)
}

func (svc *service) UpdateLesson(ctx context.Context, actor user.User, lsn Lesson, ul UpdateLesson) (Lesson, error) {
	var updated Lesson
	err := core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		mod, err := svc.editableModule(ctx, actor, lsn.ModuleID, tx)
		if err != nil {
			return err
		}
		if ul.LessonType != nil && lsn.IsExam() && *ul.LessonType != LessonTypeExam {
			if err := svc.checkNotLastExam(ctx, mod, tx); err != nil {
				return err
			}
		}
		if ul.Order != nil && *ul.Order != lsn.Order {
			exists, err := svc.repo.LessonOrderExists(ctx, lsn.ModuleID, *ul.Order, lsn.ID, tx)
			if err != nil {
				return errors.Wrap(err, "checking lesson order")
			}
			if exists {
				return errOrderExists
			}
			lsn.Order = *ul.Order
		}
		if ul.Title != nil {
			lsn.Title = *ul.Title
		}
		if ul.Content != nil {
			lsn.Content = *ul.Content
		}
		if ul.LessonType != nil {
			lsn.LessonType = *ul.LessonType
		}
		if ul.DurationMinutes != nil {
			lsn.DurationMinutes = *ul.DurationMinutes
		}
		if ul.IsPublished != nil {
			lsn.IsPublished = *ul.IsPublished
		}
		lsn.DateUpdated = time.Now().UTC()

		updated, err = svc.repo.UpdateLesson(ctx, lsn, tx)
		return err
	})
	if err != nil {
		return Lesson{}, err
	}
	return updated, nil
}

func (svc *service) DeleteLesson(ctx context.Context, actor user.User, lsn Lesson) error {
	return core.RunInTx(ctx, svc.db, func(tx core.DBTransactor) error {
		mod, err := svc.editableModule(ctx, actor, lsn.ModuleID, tx)
		if err != nil {
			return err
		}
		if lsn.IsExam() {
			if err := svc.checkNotLastExam(ctx, mod, tx); err != nil {
				return err
			}
		}
		return svc.repo.DeleteLesson(ctx, lsn.ID, tx)
	})
}

func (svc *service) editableModule(ctx context.Context, actor user.User, moduleID int, exec core.DBExecutor) (Module, error) {
	mod, err := svc.repo.GetModule(ctx, moduleID, exec)
	if err != nil {
		return Module{}, errors.Wrap(err, "finding lesson module")
	}
	if !canEdit(actor, mod) {
		return Module{}, errNotModuleAuthor
	}
	return mod, nil
}

// checkNotLastExam keeps published modules with at least one exam.
func (svc *service) checkNotLastExam(ctx context.Context, mod Module, exec core.DBExecutor) error {
	if !mod.IsPublished {
		return nil
	}
	n, err := svc.hasExam(ctx, mod.ID, exec)
	if err != nil {
		return err
	}
	if n <= 1 {
		return errLastExam
	}
	return nil
}

func (svc *service) overviews(ctx context.Context, viewer user.User, mods []Module) ([]ModuleOverview, error) {
	ids := make([]int, 0, len(mods))
	for _, m := range mods {
		ids = append(ids, m.ID)
	}

	overviews := make([]ModuleOverview, 0, len(mods))
	if len(ids) == 0 {
		return overviews, nil
	}

	lessons, err := svc.repo.QueryLessons(ctx, &LessonFilter{ModuleIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	byModule := make(map[int][]LessonSummary, len(mods))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], l.Summary())
	}

	progress, err := svc.progress.ProgressByModule(ctx, viewer.ID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "getting progress")
	}

	for _, m := range mods {
		summaries := byModule[m.ID]
		if summaries == nil {
			summaries = []LessonSummary{}
		}
		overviews = append(overviews, ModuleOverview{
			Module:       m,
			Lessons:      summaries,
			LessonsCount: len(summaries),
			Progress:     progress[m.ID],
		})
	}
	return overviews, nil
}

func (svc *service) Overview(ctx context.Context, viewer user.User) ([]ModuleOverview, error) {
	mods, err := svc.QueryModules(ctx, viewer, nil, []core.DBOrdering{{Field: "date_created", Ascending: false}})
	if err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	return svc.overviews(ctx, viewer, mods)
}

func (svc *service) ModuleDetail(ctx context.Context, viewer user.User, moduleID int) (ModuleOverview, error) {
	mod, err := svc.GetReadableModule(ctx, viewer, moduleID)
	if err != nil {
		return ModuleOverview{}, err
	}
	overviews, err := svc.overviews(ctx, viewer, []Module{mod})
	if err != nil {
		return ModuleOverview{}, err
	}
	return overviews[0], nil
}

func (svc *service) LessonDetail(ctx context.Context, viewer user.User, moduleID, lessonID int) (LessonView, error) {
	mod, err := svc.GetReadableModule(ctx, viewer, moduleID)
	if err != nil {
		return LessonView{}, err
	}
	lessons, err := svc.repo.QueryLessons(ctx, &LessonFilter{ModuleID: mod.ID})
	if err != nil {
		return LessonView{}, errors.Wrap(err, "querying module lessons")
	}
	idx := indexOf(lessonIDs(lessons), lessonID)
	if idx < 0 {
		return LessonView{}, ErrLessonNotFound
	}

	progress, err := svc.progress.ProgressByModule(ctx, viewer.ID, []int{mod.ID})
	if err != nil {
		return LessonView{}, errors.Wrap(err, "getting progress")
	}

	view := LessonView{
		Lesson:       forViewer(viewer, lessons[idx]),
		Module:       ModuleRef{ID: mod.ID, Title: mod.Title},
		Position:     idx + 1,
		TotalLessons: len(lessons),
		Progress:     progress[mod.ID],
	}
	if idx > 0 {
		view.PreviousLessonID = &lessons[idx-1].ID
	}
	if idx < len(lessons)-1 {
		view.NextLessonID = &lessons[idx+1].ID
	}
	return view, nil
}

// forViewer hides exam answer keys from students.
func forViewer(viewer user.User, lsn Lesson) Lesson {
	if lsn.IsExam() && viewer.IsStudent() {
		lsn.Content = StripAnswerKeys(lsn.Content)
	}
	return lsn
}

func boolPtr(b bool) *bool { return &b }
