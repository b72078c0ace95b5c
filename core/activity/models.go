package activity

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia/lms/core"
)

// Activity is the progress of a student within a Module.
type Activity struct {
	ID          int       `json:"id"`
	StudentID   int       `json:"student_id"`
	ModuleID    int       `json:"module_id"`
	Progress    int       `json:"progress"`     // 0-100
	DateCreated time.Time `json:"date_created"` // UTC
	DateUpdated time.Time `json:"date_updated"` // UTC
}

func (a Activity) IsCompleted() bool {
	return a.Progress >= 100
}

// TestHistory is one exam submission. Records are never modified once created.
type TestHistory struct {
	ID             int                    `json:"id"`
	StudentID      int                    `json:"student_id"`
	LessonID       int                    `json:"lesson_id"`
	LessonTitle    string                 `json:"lesson_title"`
	ModuleID       int                    `json:"module_id"`
	ModuleTitle    string                 `json:"module_title"`
	Score          int                    `json:"score"`
	MaxScore       int                    `json:"max_score"`
	Percentage     *float64               `json:"percentage"`
	Answers        map[string]interface{} `json:"answers"`
	CorrectAnswers map[string]string      `json:"correct_answers"`
	DateFinished   time.Time              `json:"date_finished"` // UTC
}

// ExamSubmission is the outcome of an exam submission as reported to the student.
type ExamSubmission struct {
	HistoryID  int     `json:"-"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"max_score"`
	Percentage float64 `json:"percentage"`
}

// UserOverview is a per-user summary pointing at the last Module learned.
type UserOverview struct {
	ID                  int       `json:"id"`
	UserID              int       `json:"user_id"`
	LastModuleLearnedID *int      `json:"last_module_learned_id"`
	ActivityIDs         []int     `json:"activities"`
	DateCreated         time.Time `json:"date_created"` // UTC
	DateUpdated         time.Time `json:"date_updated"` // UTC
}

// NewActivity contains information needed to create a new Activity.
type NewActivity struct {
	StudentID int `json:"student_id" validate:"required"`
	ModuleID  int `json:"module_id" validate:"required"`
	Progress  int `json:"progress" validate:"min=0,max=100"`
}

func (na *NewActivity) Validate(validate *validator.Validate) error {
	return validate.Struct(na)
}

// UpdateActivity defines what information may be provided to modify an existing Activity.
type UpdateActivity struct {
	Progress *int `json:"progress" validate:"omitempty,min=0,max=100"`
}

func (ua *UpdateActivity) Validate(validate *validator.Validate) error {
	return validate.Struct(ua)
}

// NewOverview contains information needed to create a new UserOverview.
type NewOverview struct {
	UserID              int   `json:"user_id" validate:"required"`
	LastModuleLearnedID *int  `json:"last_module_learned_id"`
	ActivityIDs         []int `json:"activities"`
}

func (no *NewOverview) Validate(validate *validator.Validate) error {
	return validate.Struct(no)
}

// UpdateOverview defines what information may be provided to modify an existing UserOverview.
// A zero LastModuleLearnedID clears it.
type UpdateOverview struct {
	LastModuleLearnedID *int   `json:"last_module_learned_id"`
	ActivityIDs         *[]int `json:"activities"`
}

type QueryFilter struct {
	StudentID int   `query:"student"`
	ModuleID  int   `query:"module"`
	ModuleIDs []int `query:"-"`
}

type HistoryFilter struct {
	StudentID int `query:"student"`
	LessonID  int `query:"lesson"`
}

type OverviewFilter struct {
	UserID int `query:"user"`
}

// percentage is score/maxScore as a percentage rounded to one decimal, nil when maxScore is 0.
func percentage(score, maxScore int) *float64 {
	if maxScore == 0 {
		return nil
	}
	p := core.Round1(float64(score) / float64(maxScore) * 100)
	return &p
}
