package course

import "github.com/academia/lms/core"

// ErrLessonNotInModule is returned when a lesson is missing from its module's ordered lessons.
var ErrLessonNotInModule = core.NewNotFoundError("lesson not in module")

// ComputeProgress returns the progress (0-100) reached by viewing lessonID within the ordered lessonIDs of a
// module: 100 for the last lesson, floor(position/total*100) otherwise, position being 1-based.
func ComputeProgress(lessonIDs []int, lessonID int) (int, error) {
	idx := indexOf(lessonIDs, lessonID)
	if idx < 0 {
		return 0, ErrLessonNotInModule
	}
	total := len(lessonIDs)
	if idx == total-1 {
		return 100, nil
	}
	return (idx + 1) * 100 / total, nil
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func lessonIDs(lessons []Lesson) []int {
	ids := make([]int, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.ID)
	}
	return ids
}
