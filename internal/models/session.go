package models

import "time"

// Staff is a phone identity allowed to operate the console.
type Staff struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Phone             string    `json:"phone" gorm:"uniqueIndex;size:32;not null"`
	Name              string    `json:"name" gorm:"size:120"`
	CanConfirmArrival bool      `json:"can_confirm_arrival"`
	CanCancel         bool      `json:"can_cancel" gorm:"default:false"`
	CanModify         bool      `json:"can_modify"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

// StaffSession marks a phone as operating in staff mode until it exits.
type StaffSession struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Phone     string     `json:"phone" gorm:"uniqueIndex;size:32;not null"`
	Active    bool       `json:"active" gorm:"index"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
