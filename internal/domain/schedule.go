package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduleKind selects which upstream timetable a key refers to.
type ScheduleKind string

// Supported timetable kinds.
const (
	KindGroup    ScheduleKind = "group"
	KindTeacher  ScheduleKind = "teacher"
	KindAudience ScheduleKind = "audience"
)

// ParseScheduleKind validates a kind coming from user input.
func ParseScheduleKind(s string) (ScheduleKind, error) {
	switch k := ScheduleKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindGroup, KindTeacher, KindAudience:
		return k, nil
	default:
		return "", fmt.Errorf("unknown schedule kind %q", s)
	}
}

// ScheduleKey identifies one upstream timetable.
type ScheduleKey struct {
	Kind ScheduleKind `json:"kind"`
	ID   string       `json:"id"`
}

// String returns the cache key for the timetable.
func (k ScheduleKey) String() string { return "schedule:" + string(k.Kind) + ":" + k.ID }

// Schedule is an immutable snapshot of a timetable as returned upstream.
type Schedule struct {
	Key  ScheduleKey   `json:"key"`
	Days []ScheduleDay `json:"days"`
}

// Day returns the day with the given date (YYYY-MM-DD), if present.
func (s *Schedule) Day(date string) (ScheduleDay, bool) {
	if s == nil {
		return ScheduleDay{}, false
	}
	for _, d := range s.Days {
		if d.Date == date {
			return d, true
		}
	}
	return ScheduleDay{}, false
}

// ScheduleDay holds the lessons of one calendar date.
type ScheduleDay struct {
	Date    string   `json:"date"`
	Lessons []Lesson `json:"lessons"`
}

// Lesson is one timetable slot. Start and End are wall-clock "HH:MM" values
// in the service timezone.
type Lesson struct {
	Number   int    `json:"number"`
	Name     string `json:"name"`
	Teacher  string `json:"teacher"`
	Auditory string `json:"auditory"`
	Type     int    `json:"type"`
	TypeName string `json:"type_name"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Subgroup int    `json:"subgroup"`
}

// DateLayout is the upstream calendar date format.
const DateLayout = "2006-01-02"

// StartAt resolves the lesson start on the given date in loc.
func (l Lesson) StartAt(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" 15:04", date+" "+strings.TrimSpace(l.Start), loc)
}

// Exam is one exam entry as reported upstream.
type Exam struct {
	LessonName   string `json:"lesson_name"`
	TeacherName  string `json:"teacher_name"`
	AuditoryName string `json:"auditory_name"`
	Date         string `json:"date"`
	TimeRange    string `json:"time_range"`
	Type         string `json:"type"`
}

// GradeRecord is one row of a student's record book. Identity is
// (LessonName, Semester, Course, ControlType).
type GradeRecord struct {
	LessonName  string `json:"lesson_name"`
	Semester    int    `json:"semester"`
	Course      int    `json:"course"`
	ControlType string `json:"control_type"`
	Mark        int    `json:"mark"`
	MarkName    string `json:"mark_name"`
	InDiploma   bool   `json:"in_diploma"`
}

// ExclusionRule hides lessons from a subscription. Empty fields are
// wildcards; a rule with no fields set never matches.
type ExclusionRule struct {
	LessonName  string `json:"lesson_name,omitempty"`
	TeacherName string `json:"teacher_name,omitempty"`
	LessonType  *int   `json:"lesson_type,omitempty"`
}

// IsEmpty reports whether the rule specifies no field.
func (r ExclusionRule) IsEmpty() bool {
	return strings.TrimSpace(r.LessonName) == "" && strings.TrimSpace(r.TeacherName) == "" && r.LessonType == nil
}

// UnmarshalJSON accepts either a bare lesson name string or an object.
func (r *ExclusionRule) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return err
		}
		*r = ExclusionRule{LessonName: name}
		return nil
	}
	type plain ExclusionRule
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*r = ExclusionRule(p)
	return nil
}
