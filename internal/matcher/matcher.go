// Package matcher turns a timetable snapshot and the subscriptions bound to it
// into notification candidates.
//
// A lesson is a candidate for a subscription while the whole minutes left
// until it starts lie in (NotifyMinutes-WindowMinutes, NotifyMinutes]. The
// window must be at least as wide as the dispatcher cadence, otherwise a
// lesson can fall between two ticks.
package matcher

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/xxh3"

	"github.com/tbourn/go-timetable-notifier/internal/changes"
	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

// DefaultWindowMinutes matches a one minute tick.
const DefaultWindowMinutes = 2

// Candidate is one (subscription, lesson) pair due for a notification.
type Candidate struct {
	Subscription   domain.Subscription
	Lesson         domain.Lesson
	Day            string
	StartsAt       time.Time
	MinutesToStart int
	LessonKey      string
}

// Matcher evaluates subscriptions against a schedule. The zero value uses UTC
// and DefaultWindowMinutes.
type Matcher struct {
	Location      *time.Location
	WindowMinutes int
}

func (m Matcher) loc() *time.Location {
	if m.Location == nil {
		return time.UTC
	}
	return m.Location
}

// Window is the width of the firing window.
func (m Matcher) Window() time.Duration {
	return time.Duration(m.window()) * time.Minute
}

func (m Matcher) window() int {
	if m.WindowMinutes < 1 {
		return DefaultWindowMinutes
	}
	return m.WindowMinutes
}

// Match returns the candidates of today's lessons, where today is the date
// of now in the matcher's location. Subscriptions bound to a different
// schedule key are ignored.
func (m Matcher) Match(s *domain.Schedule, subs []domain.Subscription, now time.Time) []Candidate {
	if s == nil || len(subs) == 0 {
		return nil
	}
	loc := m.loc()
	date := now.In(loc).Format(domain.DateLayout)
	day, ok := s.Day(date)
	if !ok {
		return nil
	}
	w := m.window()

	var out []Candidate
	for _, lesson := range day.Lessons {
		start, err := lesson.StartAt(date, loc)
		if err != nil {
			log.Debug().Err(err).Str("schedule", s.Key.String()).Str("lesson", lesson.Name).Msg("skipping lesson with bad start time")
			continue
		}
		minutes := MinutesUntil(now, start)
		var key string
		for _, sub := range subs {
			if sub.ScheduleKey() != s.Key {
				continue
			}
			if minutes <= sub.NotifyMinutes-w || minutes > sub.NotifyMinutes {
				continue
			}
			if Excluded(sub, lesson) {
				continue
			}
			if key == "" {
				key = LessonKey(date, lesson)
			}
			out = append(out, Candidate{
				Subscription:   sub,
				Lesson:         lesson,
				Day:            date,
				StartsAt:       start,
				MinutesToStart: minutes,
				LessonKey:      key,
			})
		}
	}
	return out
}

// MinutesUntil is floor((start-now)/1m).
func MinutesUntil(now, start time.Time) int {
	return int(math.Floor(start.Sub(now).Minutes()))
}

// RuleMatches reports whether every field the rule sets equals the lesson's.
// A rule with no field set never matches.
func RuleMatches(r domain.ExclusionRule, l domain.Lesson) bool {
	if r.IsEmpty() {
		return false
	}
	if n := changes.NormalizeField(r.LessonName); n != "" && n != changes.NormalizeField(l.Name) {
		return false
	}
	if t := changes.NormalizeField(r.TeacherName); t != "" && t != changes.NormalizeField(l.Teacher) {
		return false
	}
	if r.LessonType != nil && *r.LessonType != l.Type {
		return false
	}
	return true
}

// Excluded reports whether sub suppresses lesson. Hidden subjects apply only
// when ExcludeHidden is set; manual exclusions always apply.
func Excluded(sub domain.Subscription, l domain.Lesson) bool {
	for _, r := range sub.ManuallyExcludedSubjects {
		if RuleMatches(r, l) {
			return true
		}
	}
	if !sub.ExcludeHidden {
		return false
	}
	for _, r := range sub.HiddenSubjects {
		if RuleMatches(r, l) {
			return true
		}
	}
	return false
}

// LessonKey identifies one lesson instance on one day.
func LessonKey(day string, l domain.Lesson) string {
	var b strings.Builder
	for _, part := range []string{
		day,
		strconv.Itoa(l.Number),
		strings.TrimSpace(l.Start),
		changes.NormalizeField(l.Name),
		changes.NormalizeField(l.Teacher),
		changes.NormalizeField(l.Auditory),
		strconv.Itoa(l.Type),
		strconv.Itoa(l.Subgroup),
	} {
		b.WriteString(part)
		b.WriteByte(0)
	}
	sum := xxh3.HashString128(b.String()).Bytes()
	return hex.EncodeToString(sum[:])
}
