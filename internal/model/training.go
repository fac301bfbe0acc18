package model

import "time"

// Training is a scheduled class session.
type Training struct {
	ID        int64     `gorm:"primaryKey"`
	Title     string    `gorm:"size:256;not null"`
	Location  string    `gorm:"size:256"`
	StartsAt  time.Time `gorm:"not null;index"`
	EndsAt    time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
