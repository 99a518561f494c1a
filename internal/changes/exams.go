package changes

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// Compared exam fields, in report order.
const (
	FieldDate     = "date"
	FieldTeacher  = "teacher_name"
	FieldAuditory = "auditory_name"
	FieldTime     = "time_range"
)

// ExamDiff is the outcome of comparing one incoming exam to its stored record.
type ExamDiff struct {
	IsNew     bool     `json:"is_new"`
	IsChanged bool     `json:"is_changed"`
	Fields    []string `json:"fields,omitempty"`
}

// Unchanged reports whether the exam needs neither storing nor notifying.
func (d ExamDiff) Unchanged() bool { return !d.IsNew && !d.IsChanged }

// DiffExam compares incoming with existing, which is nil for an exam never
// seen before.
func DiffExam(existing *domain.ExamRecord, incoming domain.Exam) ExamDiff {
	if existing == nil {
		return ExamDiff{IsNew: true}
	}
	var fields []string
	cmp := func(name, a, b string) {
		if NormalizeField(a) != NormalizeField(b) {
			fields = append(fields, name)
		}
	}
	cmp(FieldDate, existing.Date, incoming.Date)
	cmp(FieldTeacher, existing.TeacherName, incoming.TeacherName)
	cmp(FieldAuditory, existing.AuditoryName, incoming.AuditoryName)
	cmp(FieldTime, existing.TimeRange, incoming.TimeRange)
	return ExamDiff{IsChanged: len(fields) > 0, Fields: fields}
}

// ExamChange is a new or changed exam together with its previous state.
type ExamChange struct {
	Exam     domain.Exam        `json:"exam"`
	Previous *domain.ExamRecord `json:"previous,omitempty"`
	Diff     ExamDiff           `json:"diff"`
}

// ExamKey is the identity of an exam within one group.
func ExamKey(lessonName string) string { return NormalizeField(lessonName) }

// DiffExams returns the new and changed exams of incoming, in incoming order.
// Records are matched by normalised lesson name. Duplicate incoming entries
// for one lesson keep the first occurrence.
func DiffExams(existing []domain.ExamRecord, incoming []domain.Exam) []ExamChange {
	byKey := make(map[string]*domain.ExamRecord, len(existing))
	for i := range existing {
		byKey[ExamKey(existing[i].LessonName)] = &existing[i]
	}
	seen := make(map[string]struct{}, len(incoming))
	var out []ExamChange
	for _, ex := range incoming {
		key := ExamKey(ex.LessonName)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		prev := byKey[key]
		d := DiffExam(prev, ex)
		if d.Unchanged() {
			continue
		}
		out = append(out, ExamChange{Exam: ex, Previous: prev, Diff: d})
	}
	return out
}

// ExamFingerprint identifies one version of an exam of a group. Any compared
// field change yields a new fingerprint.
func ExamFingerprint(group string, e domain.Exam) string {
	parts := []string{
		NormalizeField(group),
		ExamKey(e.LessonName),
		NormalizeField(e.Date),
		NormalizeField(e.TeacherName),
		NormalizeField(e.AuditoryName),
		NormalizeField(e.TimeRange),
	}
	sum := blake3.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}
