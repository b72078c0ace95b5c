package activity

import (
	"sort"
	"time"

	"github.com/academia/lms/core"
	"github.com/academia/lms/core/course"
)

// statsWindowDays bounds the monthly activity of dashboards.
const statsWindowDays = 180

const monthLayout = "2006-01"

type StudentLastModule struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	CoverImage   *string `json:"cover_image"`
	Progress     int     `json:"progress"`
	LessonsCount int     `json:"lessons_count"`
}

type StudentMonth struct {
	Month           string  `json:"month"`
	AverageProgress float64 `json:"average_progress"`
	ModulesActive   int     `json:"modules_active"`
}

type StudentStats struct {
	ActiveModules    int                `json:"active_modules"`
	CompletedModules int                `json:"completed_modules"`
	TotalLessons     int                `json:"total_lessons"`
	LessonsCompleted int                `json:"lessons_completed"`
	LastModule       *StudentLastModule `json:"last_module"`
	MonthlyActivity  []StudentMonth     `json:"monthly_activity"`
}

type TeacherLastModule struct {
	ID           int       `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CoverImage   *string   `json:"cover_image"`
	DateCreated  time.Time `json:"date_created"`
	LessonsCount int       `json:"lessons_count"`
	IsPublished  bool      `json:"is_published"`
}

type TeacherMonth struct {
	Month          string `json:"month"`
	ModulesCreated int    `json:"modules_created"`
	LessonsCreated int    `json:"lessons_created"`
}

type TeacherStats struct {
	TotalModules          int                `json:"total_modules"`
	TotalLessons          int                `json:"total_lessons"`
	TotalStudentsEnrolled int                `json:"total_students_enrolled"`
	LastModule            *TeacherLastModule `json:"last_module"`
	MonthlyActivity       []TeacherMonth     `json:"monthly_activity"`
}

type AdminStats struct {
	TotalUsers    int `json:"total_users"`
	TotalTeachers int `json:"total_teachers"`
	TotalStudents int `json:"total_students"`
	TotalModules  int `json:"total_modules"`
}

func windowStart(now time.Time) time.Time {
	return now.UTC().AddDate(0, 0, -statsWindowDays)
}

// computeStudentStats aggregates the activities of a student. mods and lessonsCount are keyed by module id;
// activities whose module is missing from mods are ignored.
func computeStudentStats(acts []Activity, mods map[int]course.Module, lessonsCount map[int]int, now time.Time) StudentStats {
	stats := StudentStats{MonthlyActivity: []StudentMonth{}}

	var last *Activity
	for i, act := range acts {
		if _, ok := mods[act.ModuleID]; !ok {
			continue
		}
		if act.IsCompleted() {
			stats.CompletedModules++
		} else {
			stats.ActiveModules++
		}
		count := lessonsCount[act.ModuleID]
		stats.TotalLessons += count
		stats.LessonsCompleted += act.Progress * count / 100

		if last == nil || act.DateUpdated.After(last.DateUpdated) ||
			(act.DateUpdated.Equal(last.DateUpdated) && act.ID > last.ID) {
			last = &acts[i]
		}
	}

	if last != nil {
		mod := mods[last.ModuleID]
		stats.LastModule = &StudentLastModule{
			ID:           mod.ID,
			Title:        mod.Title,
			Description:  mod.Description,
			CoverImage:   mod.CoverImage,
			Progress:     last.Progress,
			LessonsCount: lessonsCount[mod.ID],
		}
	}

	type bucket struct {
		sum, n int
	}
	since := windowStart(now)
	buckets := make(map[string]*bucket)
	for _, act := range acts {
		if _, ok := mods[act.ModuleID]; !ok || act.DateUpdated.Before(since) {
			continue
		}
		month := act.DateUpdated.UTC().Format(monthLayout)
		b, ok := buckets[month]
		if !ok {
			b = new(bucket)
			buckets[month] = b
		}
		b.sum += act.Progress
		b.n++
	}
	for _, month := range sortedKeys(buckets) {
		b := buckets[month]
		stats.MonthlyActivity = append(stats.MonthlyActivity, StudentMonth{
			Month:           month,
			AverageProgress: core.Round1(float64(b.sum) / float64(b.n)),
			ModulesActive:   b.n,
		})
	}
	return stats
}

// computeTeacherStats aggregates the modules authored by a teacher and their lessons.
func computeTeacherStats(mods []course.Module, lessons []course.Lesson, studentsEnrolled int, now time.Time) TeacherStats {
	stats := TeacherStats{
		TotalModules:          len(mods),
		TotalLessons:          len(lessons),
		TotalStudentsEnrolled: studentsEnrolled,
		MonthlyActivity:       []TeacherMonth{},
	}

	lessonsCount := make(map[int]int, len(mods))
	for _, l := range lessons {
		lessonsCount[l.ModuleID]++
	}

	var last *course.Module
	for i, mod := range mods {
		if last == nil || mod.DateCreated.After(last.DateCreated) ||
			(mod.DateCreated.Equal(last.DateCreated) && mod.ID > last.ID) {
			last = &mods[i]
		}
	}
	if last != nil {
		stats.LastModule = &TeacherLastModule{
			ID:           last.ID,
			Title:        last.Title,
			Description:  last.Description,
			CoverImage:   last.CoverImage,
			DateCreated:  last.DateCreated,
			LessonsCount: lessonsCount[last.ID],
			IsPublished:  last.IsPublished,
		}
	}

	since := windowStart(now)
	buckets := make(map[string]*TeacherMonth)
	get := func(t time.Time) *TeacherMonth {
		month := t.UTC().Format(monthLayout)
		b, ok := buckets[month]
		if !ok {
			b = &TeacherMonth{Month: month}
			buckets[month] = b
		}
		return b
	}
	for _, mod := range mods {
		if !mod.DateCreated.Before(since) {
			get(mod.DateCreated).ModulesCreated++
		}
	}
	for _, l := range lessons {
		if !l.DateCreated.Before(since) {
			get(l.DateCreated).LessonsCreated++
		}
	}
	for _, month := range sortedKeys(buckets) {
		stats.MonthlyActivity = append(stats.MonthlyActivity, *buckets[month])
	}
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
