package domain

import "time"

// NotificationMarker records that a notification for (subscription, lesson,
// day) has been claimed. It prevents a second delivery for the same triple
// until ExpiresAt.
type NotificationMarker struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	SubscriptionID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_marker_sub_lesson_day,priority:1"`
	LessonKey      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_marker_sub_lesson_day,priority:2"`
	Day            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_marker_sub_lesson_day,priority:3"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (NotificationMarker) TableName() string { return "notification_markers" }
