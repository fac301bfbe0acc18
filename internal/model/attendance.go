package model

import "time"

// CheckinMethod records how an attendee checked in.
type CheckinMethod string

const (
	MethodNFC    CheckinMethod = "nfc"
	MethodManual CheckinMethod = "manual"
	MethodPhoto  CheckinMethod = "photo"
	MethodInvite CheckinMethod = "invite"
)

// Attendance is one employee's check-in to one training.
type Attendance struct {
	ID          int64         `gorm:"primaryKey"`
	TrainingID  int64         `gorm:"not null;uniqueIndex:idx_attendance_training_employee"`
	EmployeeID  int64         `gorm:"not null;uniqueIndex:idx_attendance_training_employee"`
	Method      CheckinMethod `gorm:"size:16;not null"`
	CheckedInAt time.Time     `gorm:"not null"`

	// Associations
	Training Training `gorm:"constraint:OnDelete:CASCADE"`
	Employee Employee `gorm:"constraint:OnDelete:CASCADE"`
}
