package changes

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/tbourn/go-timetable-notifier/internal/domain"
)

type gradeKey struct {
	lesson      string
	semester    int
	course      int
	controlType string
}

func keyOf(g domain.GradeRecord) gradeKey {
	return gradeKey{
		lesson:      NormalizeField(g.LessonName),
		semester:    g.Semester,
		course:      g.Course,
		controlType: NormalizeField(g.ControlType),
	}
}

// GradeChange pairs the previous and the current state of one grade.
type GradeChange struct {
	Old domain.GradeRecord `json:"old"`
	New domain.GradeRecord `json:"new"`
}

// GradeDiff holds the grades that appeared or changed.
type GradeDiff struct {
	Added   []domain.GradeRecord `json:"added,omitempty"`
	Changed []GradeChange        `json:"changed,omitempty"`
}

// Empty reports whether nothing was added or changed.
func (d GradeDiff) Empty() bool { return len(d.Added) == 0 && len(d.Changed) == 0 }

// DiffGrades compares two record books keyed by (lesson, semester, course,
// control type). Grades only present in old are ignored. Results follow
// SortGrades order.
func DiffGrades(old, new []domain.GradeRecord) GradeDiff {
	prev := make(map[gradeKey]domain.GradeRecord, len(old))
	for _, g := range old {
		prev[keyOf(g)] = g
	}
	var d GradeDiff
	for _, g := range SortGrades(new) {
		p, ok := prev[keyOf(g)]
		switch {
		case !ok:
			d.Added = append(d.Added, g)
		case p.Mark != g.Mark || NormalizeField(p.MarkName) != NormalizeField(g.MarkName) || p.InDiploma != g.InDiploma:
			d.Changed = append(d.Changed, GradeChange{Old: p, New: g})
		}
	}
	return d
}

// SortGrades returns a sorted copy: course, semester, lesson, control type.
func SortGrades(grades []domain.GradeRecord) []domain.GradeRecord {
	out := slices.Clone(grades)
	slices.SortStableFunc(out, func(a, b domain.GradeRecord) int {
		return cmp.Or(
			cmp.Compare(a.Course, b.Course),
			cmp.Compare(a.Semester, b.Semester),
			cmp.Compare(NormalizeField(a.LessonName), NormalizeField(b.LessonName)),
			cmp.Compare(NormalizeField(a.ControlType), NormalizeField(b.ControlType)),
			cmp.Compare(a.Mark, b.Mark),
			cmp.Compare(a.MarkName, b.MarkName),
			cmp.Compare(boolRank(a.InDiploma), boolRank(b.InDiploma)),
			cmp.Compare(a.LessonName, b.LessonName),
			cmp.Compare(a.ControlType, b.ControlType),
		)
	})
	return out
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Fingerprint is the hex BLAKE3 digest of the sorted record book. Equal
// content always yields an equal fingerprint regardless of input order.
func Fingerprint(grades []domain.GradeRecord) string {
	sorted := SortGrades(grades)
	if sorted == nil {
		sorted = []domain.GradeRecord{}
	}
	raw, err := json.Marshal(sorted)
	if err != nil {
		// GradeRecord holds only strings, ints and bools.
		panic(err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
