// Package domain defines the persistence models for subscribers, their
// timetable subscriptions, inference credentials, exam records and grade
// snapshots. These types are mapped with GORM and form the data layer of the
// notifier.
package domain

import (
	"time"
)

// Subscriber is a delivery address (for example a Telegram chat id) that owns
// one or more subscriptions.
//
// Fields:
//   - UserRef: opaque delivery address; primary key.
//   - Blocked / BlockedAt: set once delivery reports the recipient as
//     permanently unreachable. Blocked subscribers are skipped by every tick.
//   - TrackGrades: opt-in for grade change notifications.
type Subscriber struct {
	UserRef     string     `json:"user_ref"     gorm:"type:varchar(64);primaryKey"`
	Blocked     bool       `json:"blocked"      gorm:"not null;default:false;index"`
	BlockedAt   *time.Time `json:"blocked_at,omitempty"`
	TrackGrades bool       `json:"track_grades" gorm:"not null;default:false"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Subscriber.
func (Subscriber) TableName() string { return "subscribers" }

// Subscription binds a subscriber to a group timetable with a lead time and
// exclusion rules.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserRef: owning subscriber (indexed).
//   - GroupName: timetable group the subscription follows (indexed).
//   - NotifyMinutes: lead time before lesson start.
//   - HiddenSubjects: rules applied only when ExcludeHidden is set.
//   - ManuallyExcludedSubjects: rules that always apply.
//   - IsActive: inactive subscriptions are ignored by the dispatcher.
type Subscription struct {
	ID                       string          `json:"id"             gorm:"type:char(36);primaryKey"`
	UserRef                  string          `json:"user_ref"       gorm:"type:varchar(64);not null;index:idx_sub_user"`
	GroupName                string          `json:"group_name"     gorm:"type:varchar(128);not null;index:idx_sub_group"`
	NotifyMinutes            int             `json:"notify_minutes" gorm:"not null;default:15"`
	HiddenSubjects           []ExclusionRule `json:"hidden_subjects,omitempty"            gorm:"serializer:json"`
	ManuallyExcludedSubjects []ExclusionRule `json:"manually_excluded_subjects,omitempty" gorm:"serializer:json"`
	ExcludeHidden            bool            `json:"exclude_hidden" gorm:"not null;default:false"`
	IsActive                 bool            `json:"is_active"      gorm:"not null;default:true;index"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// ScheduleKey returns the timetable key this subscription follows.
func (s Subscription) ScheduleKey() ScheduleKey {
	return ScheduleKey{Kind: KindGroup, ID: s.GroupName}
}

// Credential is a rate-limited inference API key with its last known quota
// state. Credentials are never deleted, only deactivated.
type Credential struct {
	ID                string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	Secret            string     `json:"-"                  gorm:"type:varchar(255);not null;uniqueIndex:ux_credential_secret"`
	IsActive          bool       `json:"is_active"          gorm:"not null;default:true;index"`
	RemainingRequests int        `json:"remaining_requests" gorm:"not null;default:0"`
	RemainingTokens   int        `json:"remaining_tokens"   gorm:"not null;default:0"`
	ResetRequestsAt   *time.Time `json:"reset_requests_at,omitempty"`
	ResetTokensAt     *time.Time `json:"reset_tokens_at,omitempty"`
	TotalTokensUsed   int64      `json:"total_tokens_used"  gorm:"not null;default:0"`
	TotalRequests     int64      `json:"total_requests"     gorm:"not null;default:0"`
	LastUsedAt        *time.Time `json:"last_used_at,omitempty"`
	LastStatus        int        `json:"last_status"        gorm:"not null;default:0"`
	LastError         string     `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// ExamRecord is the stored state of one exam of a group. Identity is
// (GroupName, LessonName); rows are updated in place and never deleted.
type ExamRecord struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	GroupName    string    `json:"group_name"    gorm:"type:varchar(128);not null;uniqueIndex:ux_exam_group_lesson,priority:1"`
	LessonName   string    `json:"lesson_name"   gorm:"type:varchar(255);not null;uniqueIndex:ux_exam_group_lesson,priority:2"`
	TeacherName  string    `json:"teacher_name"  gorm:"type:varchar(255)"`
	AuditoryName string    `json:"auditory_name" gorm:"type:varchar(128)"`
	Date         string    `json:"date"          gorm:"type:varchar(32)"`
	TimeRange    string    `json:"time_range"    gorm:"type:varchar(64)"`
	Type         string    `json:"type"          gorm:"type:varchar(64)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for ExamRecord.
func (ExamRecord) TableName() string { return "exam_records" }

// ExamSync records that a group's exam list has been synced at least once.
// Its presence separates the silent baseline from later syncs, whatever the
// first sync returned.
type ExamSync struct {
	GroupName string    `json:"group_name" gorm:"type:varchar(128);primaryKey"`
	SyncedAt  time.Time `json:"synced_at"  gorm:"not null"`
}

// TableName returns the database table name for ExamSync.
func (ExamSync) TableName() string { return "exam_syncs" }

// Exam returns the comparable view of the stored record.
func (r ExamRecord) Exam() Exam {
	return Exam{
		LessonName:   r.LessonName,
		TeacherName:  r.TeacherName,
		AuditoryName: r.AuditoryName,
		Date:         r.Date,
		TimeRange:    r.TimeRange,
		Type:         r.Type,
	}
}

// GradeSnapshot is the last grade list seen for a subscriber, stored sorted
// together with its content fingerprint.
type GradeSnapshot struct {
	UserRef     string        `json:"user_ref"    gorm:"type:varchar(64);primaryKey"`
	Grades      []GradeRecord `json:"grades"      gorm:"serializer:json"`
	Fingerprint string        `json:"fingerprint" gorm:"type:char(64);not null"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TableName returns the database table name for GradeSnapshot.
func (GradeSnapshot) TableName() string { return "grade_snapshots" }
