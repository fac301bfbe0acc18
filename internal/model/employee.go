package model

import "time"

// Employee is a person who attends trainings. BadgeID holds the canonical
// identifier of the employee's NFC badge, when one has been enrolled.
type Employee struct {
	ID        int64   `gorm:"primaryKey"`
	Name      string  `gorm:"size:256;not null"`
	BadgeID   *string `gorm:"uniqueIndex;size:14"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
