package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia/lms/core"
)

// Lesson types
const (
	LessonTypeLesson = "lesson"
	LessonTypeExam   = "exam"
)

const defaultDurationMinutes = 30

// Author is the public view of the User who created a Module.
type Author struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type Module struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	Author      Author    `json:"author"`
	CoverImage  *string   `json:"cover_image"`
	IsPublished bool      `json:"is_published"`
	DateCreated time.Time `json:"date_created"` // UTC
	DateUpdated time.Time `json:"date_updated"` // UTC
}

type Lesson struct {
	ID              int       `json:"id"`
	ModuleID        int       `json:"module_id"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	LessonType      string    `json:"lesson_type"`
	Order           int       `json:"order"`
	DurationMinutes int       `json:"duration_minutes"`
	IsPublished     bool      `json:"is_published"`
	DateCreated     time.Time `json:"date_created"` // UTC
	DateUpdated     time.Time `json:"date_updated"` // UTC
}

func (l Lesson) IsExam() bool {
	return l.LessonType == LessonTypeExam
}

// LessonSummary is a Lesson without its content, as listed within a Module.
type LessonSummary struct {
	ID              int    `json:"id"`
	Title           string `json:"title"`
	LessonType      string `json:"lesson_type"`
	Order           int    `json:"order"`
	DurationMinutes int    `json:"duration_minutes"`
	IsPublished     bool   `json:"is_published"`
}

func (l Lesson) Summary() LessonSummary {
	return LessonSummary{
		ID:              l.ID,
		Title:           l.Title,
		LessonType:      l.LessonType,
		Order:           l.Order,
		DurationMinutes: l.DurationMinutes,
		IsPublished:     l.IsPublished,
	}
}

// ModuleOverview is a Module with its ordered lessons and the viewer's progress.
type ModuleOverview struct {
	Module
	Lessons      []LessonSummary `json:"lessons"`
	LessonsCount int             `json:"lessons_count"`
	Progress     int             `json:"progress"`
}

type ModuleRef struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// LessonView is a Lesson as read by a User, with navigation within its Module.
type LessonView struct {
	Lesson           Lesson    `json:"lesson"`
	Module           ModuleRef `json:"module"`
	Position         int       `json:"position"` // 1-based
	TotalLessons     int       `json:"total_lessons"`
	Progress         int       `json:"progress"`
	PreviousLessonID *int      `json:"previous_lesson_id"`
	NextLessonID     *int      `json:"next_lesson_id"`
}

// NewModule contains information needed to create a new Module.
type NewModule struct {
	Title       string    `json:"title" validate:"required,notblank,max=255"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline" validate:"required"`
	CoverImage  string    `json:"cover_image" validate:"max=2048"`
	IsPublished bool      `json:"is_published"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	nm.CoverImage = core.CleanString(nm.CoverImage)
	return validate.Struct(nm)
}

// UpdateModule defines what information may be provided to modify an existing Module.
type UpdateModule struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string    `json:"description"`
	Deadline    *time.Time `json:"deadline"`
	CoverImage  *string    `json:"cover_image" validate:"omitempty,max=2048"`
	IsPublished *bool      `json:"is_published"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error {
	cleanPtr(um.Title)
	cleanPtr(um.Description)
	cleanPtr(um.CoverImage)
	return validate.Struct(um)
}

// NewLesson contains information needed to create a new Lesson.
type NewLesson struct {
	ModuleID        int    `json:"module_id" validate:"required"`
	Title           string `json:"title" validate:"required,notblank,max=255"`
	Content         string `json:"content"`
	LessonType      string `json:"lesson_type" validate:"omitempty,oneof=lesson exam"`
	Order           *int   `json:"order" validate:"omitempty,min=0"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,min=1"`
	IsPublished     bool   `json:"is_published"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.LessonType = core.CleanString(nl.LessonType, true /* lower */)
	if nl.LessonType == "" {
		nl.LessonType = LessonTypeLesson
	}
	return validate.Struct(nl)
}

// UpdateLesson defines what information may be provided to modify an existing Lesson.
type UpdateLesson struct {
	Title           *string `json:"title" validate:"omitempty,notblank,max=255"`
	Content         *string `json:"content"`
	LessonType      *string `json:"lesson_type" validate:"omitempty,oneof=lesson exam"`
	Order           *int    `json:"order" validate:"omitempty,min=0"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1"`
	IsPublished     *bool   `json:"is_published"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	cleanPtr(ul.Title)
	if ul.LessonType != nil {
		*ul.LessonType = core.CleanString(*ul.LessonType, true /* lower */)
	}
	return validate.Struct(ul)
}

type ModuleFilter struct {
	Search      string `query:"search"`
	AuthorID    int    `query:"author"`
	IsPublished *bool  `query:"is_published"`
	IDs         []int  `query:"-"`
}

func (mf *ModuleFilter) Clean() {
	mf.Search = core.CleanString(mf.Search)
}

type LessonFilter struct {
	ModuleID   int    `query:"module"`
	LessonType string `query:"lesson_type"`
	ModuleIDs  []int  `query:"-"`
}

func cleanPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}
