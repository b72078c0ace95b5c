package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
)

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{repository{exec: exec}}
}

type moduleRow struct {
	ID             int         `db:"id"`
	Title          string      `db:"title"`
	Description    string      `db:"description"`
	Deadline       time.Time   `db:"deadline"`
	AuthorID       int         `db:"author_id"`
	AuthorUsername null.String `db:"author_username"`
	AuthorFullName null.String `db:"author_full_name"`
	CoverImage     null.String `db:"cover_image"`
	IsPublished    bool        `db:"is_published"`
	DateCreated    time.Time   `db:"date_created"`
	DateUpdated    time.Time   `db:"date_updated"`
}

func (r moduleRow) module() course.Module {
	return course.Module{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Deadline:    r.Deadline.UTC(),
		Author: course.Author{
			ID:       r.AuthorID,
			Username: r.AuthorUsername.String,
			FullName: r.AuthorFullName.String,
		},
		CoverImage:  r.CoverImage.Ptr(),
		IsPublished: r.IsPublished,
		DateCreated: r.DateCreated.UTC(),
		DateUpdated: r.DateUpdated.UTC(),
	}
}

const selectModules = `
SELECT m.id, m.title, m.description, m.deadline, m.author_id, u.username AS author_username,
       u.full_name AS author_full_name, m.cover_image, m.is_published, m.date_created, m.date_updated
FROM modules m
LEFT JOIN users u ON u.id = m.author_id`

var moduleOrderingColumns = map[string]string{
	"id":           "m.id",
	"title":        "m.title",
	"deadline":     "m.deadline",
	"date_created": "m.date_created",
	"date_updated": "m.date_updated",
	"is_published": "m.is_published",
}

func moduleWhere(filter *course.ModuleFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(m.title) LIKE ? OR LOWER(m.description) LIKE ?)", val, val)
	}
	if filter.AuthorID != 0 {
		w.add("m.author_id = ?", filter.AuthorID)
	}
	if filter.IsPublished != nil {
		w.add("m.is_published = ?", *filter.IsPublished)
	}
	if filter.IDs != nil {
		w.in("m.id", filter.IDs)
	}
	return w
}

func (repo courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	q := `INSERT INTO modules (title, description, deadline, author_id, cover_image, is_published, date_created, date_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	err := get(ctx, repo.getExec(exec), &mod.ID, q,
		mod.Title, mod.Description, mod.Deadline.UTC(), mod.Author.ID, null.StringFromPtr(mod.CoverImage),
		mod.IsPublished, mod.DateCreated.UTC(), mod.DateUpdated.UTC())
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo courseRepository) GetModule(ctx context.Context, id int, exec ...core.DBExecutor) (course.Module, error) {
	var row moduleRow
	if err := get(ctx, repo.getExec(exec), &row, selectModules+" WHERE m.id = ?", id); err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "finding module")
	}
	return row.module(), nil
}

func (repo courseRepository) QueryModules(ctx context.Context, filter *course.ModuleFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Module, error) {
	w := moduleWhere(filter)
	var rows []moduleRow
	q := selectModules + w.String() + orderBy(ordering, moduleOrderingColumns, "m.id ASC")
	if err := sel(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	mods := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		mods = append(mods, r.module())
	}
	return mods, nil
}

func (repo courseRepository) CountModules(ctx context.Context, filter *course.ModuleFilter, exec ...core.DBExecutor) (int, error) {
	w := moduleWhere(filter)
	var n int
	if err := get(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM modules m"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting modules")
	}
	return n, nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	q := `UPDATE modules
SET title = ?, description = ?, deadline = ?, cover_image = ?, is_published = ?, date_updated = ?
WHERE id = ?`
	res, err := execute(ctx, repo.getExec(exec), q,
		mod.Title, mod.Description, mod.Deadline.UTC(), null.StringFromPtr(mod.CoverImage), mod.IsPublished,
		mod.DateUpdated.UTC(), mod.ID)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Module{}, course.ErrModuleNotFound
	}
	return mod, nil
}

func (repo courseRepository) DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "modules", id, course.ErrModuleNotFound)
}

func (repo courseRepository) ModuleTitleExists(ctx context.Context, title string, excludeID int, exec ...core.DBExecutor) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM modules WHERE LOWER(title) = ? AND id <> ?"
	if err := get(ctx, repo.getExec(exec), &n, q, core.CleanString(title, true /* lower */), excludeID); err != nil {
		return false, errors.Wrap(err, "checking module title")
	}
	return n > 0, nil
}

type lessonRow struct {
	ID              int       `db:"id"`
	ModuleID        int       `db:"module_id"`
	Title           string    `db:"title"`
	Content         string    `db:"content"`
	LessonType      string    `db:"lesson_type"`
	Position        int       `db:"position"`
	DurationMinutes int       `db:"duration_minutes"`
	IsPublished     bool      `db:"is_published"`
	DateCreated     time.Time `db:"date_created"`
	DateUpdated     time.Time `db:"date_updated"`
}

func (r lessonRow) lesson() course.Lesson {
	return course.Lesson{
		ID:              r.ID,
		ModuleID:        r.ModuleID,
		Title:           r.Title,
		Content:         r.Content,
		LessonType:      r.LessonType,
		Order:           r.Position,
		DurationMinutes: r.DurationMinutes,
		IsPublished:     r.IsPublished,
		DateCreated:     r.DateCreated.UTC(),
		DateUpdated:     r.DateUpdated.UTC(),
	}
}

const selectLessons = `
SELECT id, module_id, title, content, lesson_type, position, duration_minutes, is_published, date_created, date_updated
FROM lessons`

func lessonWhere(filter *course.LessonFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.ModuleID != 0 {
		w.add("module_id = ?", filter.ModuleID)
	}
	if filter.LessonType != "" {
		w.add("lesson_type = ?", filter.LessonType)
	}
	if filter.ModuleIDs != nil {
		w.in("module_id", filter.ModuleIDs)
	}
	return w
}

func (repo courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	q := `INSERT INTO lessons (module_id, title, content, lesson_type, position, duration_minutes, is_published,
                     date_created, date_updated)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	err := get(ctx, repo.getExec(exec), &lsn.ID, q,
		lsn.ModuleID, lsn.Title, lsn.Content, lsn.LessonType, lsn.Order, lsn.DurationMinutes, lsn.IsPublished,
		lsn.DateCreated.UTC(), lsn.DateUpdated.UTC())
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo courseRepository) GetLesson(ctx context.Context, id int, exec ...core.DBExecutor) (course.Lesson, error) {
	var row lessonRow
	if err := get(ctx, repo.getExec(exec), &row, selectLessons+" WHERE id = ?", id); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrLessonNotFound, "finding lesson")
	}
	return row.lesson(), nil
}

func (repo courseRepository) QueryLessons(ctx context.Context, filter *course.LessonFilter, exec ...core.DBExecutor) ([]course.Lesson, error) {
	w := lessonWhere(filter)
	var rows []lessonRow
	q := selectLessons + w.String() + " ORDER BY module_id ASC, position ASC, id ASC"
	if err := sel(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying lessons")
	}
	lessons := make([]course.Lesson, 0, len(rows))
	for _, r := range rows {
		lessons = append(lessons, r.lesson())
	}
	return lessons, nil
}

func (repo courseRepository) CountLessons(ctx context.Context, filter *course.LessonFilter, exec ...core.DBExecutor) (int, error) {
	w := lessonWhere(filter)
	var n int
	if err := get(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM lessons"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting lessons")
	}
	return n, nil
}

func (repo courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson, exec ...core.DBExecutor) (course.Lesson, error) {
	q := `UPDATE lessons
SET title = ?, content = ?, lesson_type = ?, position = ?, duration_minutes = ?, is_published = ?, date_updated = ?
WHERE id = ?`
	res, err := execute(ctx, repo.getExec(exec), q,
		lsn.Title, lsn.Content, lsn.LessonType, lsn.Order, lsn.DurationMinutes, lsn.IsPublished,
		lsn.DateUpdated.UTC(), lsn.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Lesson{}, course.ErrLessonNotFound
	}
	return lsn, nil
}

func (repo courseRepository) DeleteLesson(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "lessons", id, course.ErrLessonNotFound)
}

func (repo courseRepository) NextLessonOrder(ctx context.Context, moduleID int, exec ...core.DBExecutor) (int, error) {
	var next int
	q := "SELECT COALESCE(MAX(position) + 1, 0) FROM lessons WHERE module_id = ?"
	if err := get(ctx, repo.getExec(exec), &next, q, moduleID); err != nil {
		return 0, errors.Wrap(err, "getting next lesson order")
	}
	return next, nil
}

func (repo courseRepository) LessonOrderExists(ctx context.Context, moduleID, order, excludeID int, exec ...core.DBExecutor) (bool, error) {
	var n int
	q := "SELECT COUNT(*) FROM lessons WHERE module_id = ? AND position = ? AND id <> ?"
	if err := get(ctx, repo.getExec(exec), &n, q, moduleID, order, excludeID); err != nil {
		return false, errors.Wrap(err, "checking lesson order")
	}
	return n > 0, nil
}
