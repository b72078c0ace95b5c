package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/activity"
)

type activityRepository struct {
	repository
}

var _ activity.Repository = (*activityRepository)(nil) // interface compliance check

func NewActivityRepository(exec core.DBExecutor) *activityRepository {
	return &activityRepository{repository{exec: exec}}
}

type activityRow struct {
	ID          int       `db:"id"`
	StudentID   int       `db:"student_id"`
	ModuleID    int       `db:"module_id"`
	Progress    int       `db:"progress"`
	DateCreated time.Time `db:"date_created"`
	DateUpdated time.Time `db:"date_updated"`
}

func (r activityRow) activity() activity.Activity {
	return activity.Activity{
		ID:          r.ID,
		StudentID:   r.StudentID,
		ModuleID:    r.ModuleID,
		Progress:    r.Progress,
		DateCreated: r.DateCreated.UTC(),
		DateUpdated: r.DateUpdated.UTC(),
	}
}

const selectActivities = "SELECT id, student_id, module_id, progress, date_created, date_updated FROM activities"

func activityWhere(filter *activity.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.StudentID != 0 {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.ModuleID != 0 {
		w.add("module_id = ?", filter.ModuleID)
	}
	if filter.ModuleIDs != nil {
		w.in("module_id", filter.ModuleIDs)
	}
	return w
}

func (repo activityRepository) RecordProgress(ctx context.Context, studentID, moduleID, progress int, now time.Time, exec ...core.DBExecutor) (activity.Activity, error) {
	q := `INSERT INTO activities (student_id, module_id, progress, date_created, date_updated)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (student_id, module_id) DO UPDATE
SET progress     = CASE WHEN excluded.progress > activities.progress THEN excluded.progress ELSE activities.progress END,
    date_updated = CASE WHEN excluded.progress > activities.progress THEN excluded.date_updated ELSE activities.date_updated END
RETURNING id`
	return repo.upsertActivity(ctx, q, studentID, moduleID, progress, now, exec)
}

func (repo activityRepository) CompleteModule(ctx context.Context, studentID, moduleID int, now time.Time, exec ...core.DBExecutor) (activity.Activity, error) {
	q := `INSERT INTO activities (student_id, module_id, progress, date_created, date_updated)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (student_id, module_id) DO UPDATE
SET progress     = excluded.progress,
    date_updated = excluded.date_updated
RETURNING id`
	return repo.upsertActivity(ctx, q, studentID, moduleID, 100, now, exec)
}

func (repo activityRepository) upsertActivity(ctx context.Context, q string, studentID, moduleID, progress int, now time.Time, exec []core.DBExecutor) (activity.Activity, error) {
	exe := repo.getExec(exec)
	var id int
	if err := get(ctx, exe, &id, q, studentID, moduleID, progress, now.UTC(), now.UTC()); err != nil {
		return activity.Activity{}, errors.Wrap(err, "upserting activity")
	}
	return repo.GetActivity(ctx, id, exe)
}

func (repo activityRepository) CreateActivity(ctx context.Context, act activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	q := `INSERT INTO activities (student_id, module_id, progress, date_created, date_updated)
VALUES (?, ?, ?, ?, ?)
RETURNING id`
	err := get(ctx, repo.getExec(exec), &act.ID, q,
		act.StudentID, act.ModuleID, act.Progress, act.DateCreated.UTC(), act.DateUpdated.UTC())
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "inserting activity")
	}
	return act, nil
}

func (repo activityRepository) GetActivity(ctx context.Context, id int, exec ...core.DBExecutor) (activity.Activity, error) {
	var row activityRow
	if err := get(ctx, repo.getExec(exec), &row, selectActivities+" WHERE id = ?", id); err != nil {
		return activity.Activity{}, trapNoRowsErr(err, activity.ErrNotFound, "finding activity")
	}
	return row.activity(), nil
}

func (repo activityRepository) QueryActivities(ctx context.Context, filter *activity.QueryFilter, exec ...core.DBExecutor) ([]activity.Activity, error) {
	w := activityWhere(filter)
	var rows []activityRow
	q := selectActivities + w.String() + " ORDER BY date_updated DESC, id DESC"
	if err := sel(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying activities")
	}
	acts := make([]activity.Activity, 0, len(rows))
	for _, r := range rows {
		acts = append(acts, r.activity())
	}
	return acts, nil
}

func (repo activityRepository) UpdateActivity(ctx context.Context, act activity.Activity, exec ...core.DBExecutor) (activity.Activity, error) {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE activities SET progress = ?, date_updated = ? WHERE id = ?",
		act.Progress, act.DateUpdated.UTC(), act.ID)
	if err != nil {
		return activity.Activity{}, errors.Wrap(err, "updating activity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return activity.Activity{}, activity.ErrNotFound
	}
	return act, nil
}

func (repo activityRepository) DeleteActivity(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "activities", id, activity.ErrNotFound)
}

func (repo activityRepository) ProgressByModule(ctx context.Context, studentID int, moduleIDs []int, exec ...core.DBExecutor) (map[int]int, error) {
	progress := make(map[int]int, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return progress, nil
	}
	var w where
	w.add("student_id = ?", studentID)
	w.in("module_id", moduleIDs)

	var rows []struct {
		ModuleID int `db:"module_id"`
		Progress int `db:"progress"`
	}
	if err := sel(ctx, repo.getExec(exec), &rows, "SELECT module_id, progress FROM activities"+w.String(), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	for _, r := range rows {
		progress[r.ModuleID] = r.Progress
	}
	return progress, nil
}

func (repo activityRepository) CountStudents(ctx context.Context, moduleIDs []int, exec ...core.DBExecutor) (int, error) {
	var w where
	w.in("module_id", moduleIDs)
	var n int
	if err := get(ctx, repo.getExec(exec), &n, "SELECT COUNT(DISTINCT student_id) FROM activities"+w.String(), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return n, nil
}

type historyRow struct {
	ID             int            `db:"id"`
	StudentID      int            `db:"student_id"`
	LessonID       int            `db:"lesson_id"`
	LessonTitle    string         `db:"lesson_title"`
	ModuleID       int            `db:"module_id"`
	ModuleTitle    string         `db:"module_title"`
	Score          int            `db:"score"`
	MaxScore       int            `db:"max_score"`
	Answers        types.JSONText `db:"answers"`
	CorrectAnswers types.JSONText `db:"correct_answers"`
	DateFinished   time.Time      `db:"date_finished"`
}

func (r historyRow) history() (activity.TestHistory, error) {
	h := activity.TestHistory{
		ID:           r.ID,
		StudentID:    r.StudentID,
		LessonID:     r.LessonID,
		LessonTitle:  r.LessonTitle,
		ModuleID:     r.ModuleID,
		ModuleTitle:  r.ModuleTitle,
		Score:        r.Score,
		MaxScore:     r.MaxScore,
		DateFinished: r.DateFinished.UTC(),
	}
	if err := r.Answers.Unmarshal(&h.Answers); err != nil {
		return activity.TestHistory{}, errors.Wrap(err, "decoding answers")
	}
	if err := r.CorrectAnswers.Unmarshal(&h.CorrectAnswers); err != nil {
		return activity.TestHistory{}, errors.Wrap(err, "decoding correct answers")
	}
	if h.Answers == nil {
		h.Answers = map[string]interface{}{}
	}
	if h.CorrectAnswers == nil {
		h.CorrectAnswers = map[string]string{}
	}
	return h, nil
}

func jsonText(v interface{}) (types.JSONText, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return types.JSONText(b), nil
}

func (repo activityRepository) CreateTestHistory(ctx context.Context, h activity.TestHistory, exec ...core.DBExecutor) (activity.TestHistory, error) {
	answers, err := jsonText(h.Answers)
	if err != nil {
		return activity.TestHistory{}, errors.Wrap(err, "encoding answers")
	}
	correct, err := jsonText(h.CorrectAnswers)
	if err != nil {
		return activity.TestHistory{}, errors.Wrap(err, "encoding correct answers")
	}

	q := `INSERT INTO test_histories (student_id, lesson_id, score, max_score, answers, correct_answers, date_finished)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id`
	err = get(ctx, repo.getExec(exec), &h.ID, q,
		h.StudentID, h.LessonID, h.Score, h.MaxScore, answers.String(), correct.String(), h.DateFinished.UTC())
	if err != nil {
		return activity.TestHistory{}, errors.Wrap(err, "inserting test history")
	}
	return h, nil
}

func (repo activityRepository) QueryTestHistories(ctx context.Context, filter *activity.HistoryFilter, exec ...core.DBExecutor) ([]activity.TestHistory, error) {
	var w where
	if filter != nil {
		if filter.StudentID != 0 {
			w.add("h.student_id = ?", filter.StudentID)
		}
		if filter.LessonID != 0 {
			w.add("h.lesson_id = ?", filter.LessonID)
		}
	}
	q := `
SELECT h.id, h.student_id, h.lesson_id, l.title AS lesson_title, l.module_id, m.title AS module_title,
       h.score, h.max_score, h.answers, h.correct_answers, h.date_finished
FROM test_histories h
JOIN lessons l ON l.id = h.lesson_id
JOIN modules m ON m.id = l.module_id` + w.String() + `
ORDER BY h.date_finished DESC, h.id DESC`

	var rows []historyRow
	if err := sel(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying test histories")
	}
	history := make([]activity.TestHistory, 0, len(rows))
	for _, r := range rows {
		h, err := r.history()
		if err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, nil
}

type overviewRow struct {
	ID                  int       `db:"id"`
	UserID              int       `db:"user_id"`
	LastModuleLearnedID null.Int  `db:"last_module_learned_id"`
	DateCreated         time.Time `db:"date_created"`
	DateUpdated         time.Time `db:"date_updated"`
}

func (r overviewRow) overview() activity.UserOverview {
	return activity.UserOverview{
		ID:                  r.ID,
		UserID:              r.UserID,
		LastModuleLearnedID: r.LastModuleLearnedID.Ptr(),
		ActivityIDs:         []int{},
		DateCreated:         r.DateCreated.UTC(),
		DateUpdated:         r.DateUpdated.UTC(),
	}
}

const selectOverviews = "SELECT id, user_id, last_module_learned_id, date_created, date_updated FROM user_overviews"

// loadOverviewActivities fills the ActivityIDs of overviews.
func (repo activityRepository) loadOverviewActivities(ctx context.Context, exe core.DBExecutor, overviews []activity.UserOverview) error {
	if len(overviews) == 0 {
		return nil
	}
	ids := make([]int, 0, len(overviews))
	index := make(map[int]int, len(overviews))
	for i, ov := range overviews {
		ids = append(ids, ov.ID)
		index[ov.ID] = i
	}
	var w where
	w.in("overview_id", ids)

	var links []struct {
		OverviewID int `db:"overview_id"`
		ActivityID int `db:"activity_id"`
	}
	q := "SELECT overview_id, activity_id FROM user_overview_activities" + w.String() + " ORDER BY activity_id"
	if err := sel(ctx, exe, &links, q, w.args...); err != nil {
		return errors.Wrap(err, "querying overview activities")
	}
	for _, l := range links {
		i := index[l.OverviewID]
		overviews[i].ActivityIDs = append(overviews[i].ActivityIDs, l.ActivityID)
	}
	return nil
}

func (repo activityRepository) setOverviewActivities(ctx context.Context, exe core.DBExecutor, ov activity.UserOverview) error {
	if _, err := execute(ctx, exe, "DELETE FROM user_overview_activities WHERE overview_id = ?", ov.ID); err != nil {
		return errors.Wrap(err, "clearing overview activities")
	}
	seen := make(map[int]bool, len(ov.ActivityIDs))
	for _, id := range ov.ActivityIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		q := "INSERT INTO user_overview_activities (overview_id, activity_id) VALUES (?, ?)"
		if _, err := execute(ctx, exe, q, ov.ID, id); err != nil {
			return errors.Wrap(err, "linking overview activity")
		}
	}
	return nil
}

func (repo activityRepository) CreateOverview(ctx context.Context, ov activity.UserOverview, exec ...core.DBExecutor) (activity.UserOverview, error) {
	exe := repo.getExec(exec)
	q := `INSERT INTO user_overviews (user_id, last_module_learned_id, date_created, date_updated)
VALUES (?, ?, ?, ?)
RETURNING id`
	err := get(ctx, exe, &ov.ID, q, ov.UserID, null.IntFromPtr(ov.LastModuleLearnedID), ov.DateCreated.UTC(), ov.DateUpdated.UTC())
	if err != nil {
		return activity.UserOverview{}, errors.Wrap(err, "inserting overview")
	}
	if err = repo.setOverviewActivities(ctx, exe, ov); err != nil {
		return activity.UserOverview{}, err
	}
	return repo.GetOverview(ctx, ov.ID, exe)
}

func (repo activityRepository) GetOverview(ctx context.Context, id int, exec ...core.DBExecutor) (activity.UserOverview, error) {
	exe := repo.getExec(exec)
	var row overviewRow
	if err := get(ctx, exe, &row, selectOverviews+" WHERE id = ?", id); err != nil {
		return activity.UserOverview{}, trapNoRowsErr(err, activity.ErrOverviewNotFound, "finding overview")
	}
	overviews := []activity.UserOverview{row.overview()}
	if err := repo.loadOverviewActivities(ctx, exe, overviews); err != nil {
		return activity.UserOverview{}, err
	}
	return overviews[0], nil
}

func (repo activityRepository) QueryOverviews(ctx context.Context, filter *activity.OverviewFilter, exec ...core.DBExecutor) ([]activity.UserOverview, error) {
	exe := repo.getExec(exec)
	var w where
	if filter != nil && filter.UserID != 0 {
		w.add("user_id = ?", filter.UserID)
	}
	var rows []overviewRow
	if err := sel(ctx, exe, &rows, selectOverviews+w.String()+" ORDER BY id", w.args...); err != nil {
		return nil, errors.Wrap(err, "querying overviews")
	}
	overviews := make([]activity.UserOverview, 0, len(rows))
	for _, r := range rows {
		overviews = append(overviews, r.overview())
	}
	if err := repo.loadOverviewActivities(ctx, exe, overviews); err != nil {
		return nil, err
	}
	return overviews, nil
}

func (repo activityRepository) UpdateOverview(ctx context.Context, ov activity.UserOverview, exec ...core.DBExecutor) (activity.UserOverview, error) {
	exe := repo.getExec(exec)
	res, err := execute(ctx, exe, "UPDATE user_overviews SET last_module_learned_id = ?, date_updated = ? WHERE id = ?",
		null.IntFromPtr(ov.LastModuleLearnedID), ov.DateUpdated.UTC(), ov.ID)
	if err != nil {
		return activity.UserOverview{}, errors.Wrap(err, "updating overview")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return activity.UserOverview{}, activity.ErrOverviewNotFound
	}
	if err = repo.setOverviewActivities(ctx, exe, ov); err != nil {
		return activity.UserOverview{}, err
	}
	return repo.GetOverview(ctx, ov.ID, exe)
}

func (repo activityRepository) DeleteOverview(ctx context.Context, id int, exec ...core.DBExecutor) error {
	return deleteByID(ctx, repo.getExec(exec), "user_overviews", id, activity.ErrOverviewNotFound)
}
