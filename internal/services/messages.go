package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-timetable-notifier/internal/changes"
	"github.com/tbourn/go-timetable-notifier/internal/matcher"
)

func lessonText(c matcher.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "In %d min: %s", max(c.MinutesToStart, 0), c.Lesson.Name)
	if c.Lesson.TypeName != "" {
		fmt.Fprintf(&b, " (%s)", c.Lesson.TypeName)
	}
	fmt.Fprintf(&b, "\nStarts at %s", c.Lesson.Start)
	if c.Lesson.End != "" {
		fmt.Fprintf(&b, "-%s", c.Lesson.End)
	}
	if c.Lesson.Auditory != "" {
		fmt.Fprintf(&b, "\nRoom: %s", c.Lesson.Auditory)
	}
	if c.Lesson.Teacher != "" {
		fmt.Fprintf(&b, "\nTeacher: %s", c.Lesson.Teacher)
	}
	return b.String()
}

func examText(group string, ch changes.ExamChange) string {
	var b strings.Builder
	if ch.Diff.IsNew {
		fmt.Fprintf(&b, "New exam for %s: %s", group, ch.Exam.LessonName)
	} else {
		fmt.Fprintf(&b, "Exam changed for %s: %s (%s)", group, ch.Exam.LessonName, strings.Join(ch.Diff.Fields, ", "))
	}
	fmt.Fprintf(&b, "\nDate: %s %s", ch.Exam.Date, ch.Exam.TimeRange)
	if ch.Exam.AuditoryName != "" {
		fmt.Fprintf(&b, "\nRoom: %s", ch.Exam.AuditoryName)
	}
	if ch.Exam.TeacherName != "" {
		fmt.Fprintf(&b, "\nTeacher: %s", ch.Exam.TeacherName)
	}
	return b.String()
}

func gradesText(d changes.GradeDiff) string {
	var b strings.Builder
	b.WriteString("Record book updated")
	for _, g := range d.Added {
		fmt.Fprintf(&b, "\n+ %s (%s, sem. %d): %s", g.LessonName, g.ControlType, g.Semester, markLabel(g.MarkName, g.Mark))
	}
	for _, c := range d.Changed {
		fmt.Fprintf(&b, "\n* %s (%s, sem. %d): %s -> %s", c.New.LessonName, c.New.ControlType, c.New.Semester,
			markLabel(c.Old.MarkName, c.Old.Mark), markLabel(c.New.MarkName, c.New.Mark))
	}
	return b.String()
}

func markLabel(name string, mark int) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fmt.Sprint(mark)
}
