package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/academia/lms/core/course"
)

type (
	examOption struct {
		Text      string `json:"text"`
		IsCorrect bool   `json:"isCorrect"`
	}

	examQuestion struct {
		ID       int          `json:"id"`
		Question string       `json:"question"`
		Options  []examOption `json:"options"`
	}
)

// newExamContent returns the content of a multiple choice exam about title. Option "A" is always correct.
func newExamContent(title string) string {
	prompts := []string{
		"Which topic is the main focus of %q?",
		"What should you review first when preparing the %q exam?",
		"Which resource best complements %q?",
	}
	questions := make([]examQuestion, 0, len(prompts))
	for i, prompt := range prompts {
		questions = append(questions, examQuestion{
			ID:       i + 1,
			Question: fmt.Sprintf(prompt, title),
			Options: []examOption{
				{Text: "A", IsCorrect: true},
				{Text: "B"},
				{Text: "C"},
				{Text: "D"},
			},
		})
	}
	content, _ := json.Marshal(questions)
	return string(content)
}

// addExam appends a final exam to mod.
func (cli *commandLine) addExam(ctx context.Context, mod course.Module) (course.Lesson, error) {
	order, err := cli.crsRepo.NextLessonOrder(ctx, mod.ID)
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "getting next lesson order")
	}
	now := time.Now().UTC()
	return cli.crsRepo.CreateLesson(ctx, course.Lesson{
		ModuleID:        mod.ID,
		Title:           mod.Title + " - Final Exam",
		Content:         newExamContent(mod.Title),
		LessonType:      course.LessonTypeExam,
		Order:           order,
		DurationMinutes: 60,
		IsPublished:     true,
		DateCreated:     now,
		DateUpdated:     now,
	})
}

// createExams adds an exam to every module without one and returns the number of exams created.
func (cli *commandLine) createExams(ctx context.Context) (int, error) {
	mods, err := cli.crsRepo.QueryModules(ctx, nil, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying modules")
	}

	created := 0
	for _, mod := range mods {
		n, err := cli.crsRepo.CountLessons(ctx, &course.LessonFilter{ModuleID: mod.ID, LessonType: course.LessonTypeExam})
		if err != nil {
			return created, errors.Wrap(err, "counting exams")
		}
		if n > 0 {
			cli.printf("  %s: already has an exam\n", mod.Title)
			continue
		}
		if _, err = cli.addExam(ctx, mod); err != nil {
			return created, errors.Wrapf(err, "creating exam of %q", mod.Title)
		}
		created++
		cli.printf("  %s: exam created\n", mod.Title)
	}
	return created, nil
}

func (cli *commandLine) createExamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "createexam",
		Short: "Create a multiple choice exam for every module without one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.printf("Creating exams...\n")
			n, err := cli.createExams(cmd.Context())
			if err != nil {
				return err
			}
			cli.printf("Created %d exams\n", n)
			return nil
		},
	}
}
