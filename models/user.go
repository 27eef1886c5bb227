package models

import (
	"time"
)

// User carries the login identity. Enrollment data lives in StudentProfile
// (one-to-one); role membership lives in RoleAssignment. Both cascade with
// the user so neither can outlive it.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time       `gorm:"index"`
	Username       string           `gorm:"size:255;not null;unique"`
	HashedPassword []byte           `gorm:"not null"`
	Roles          []RoleAssignment `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Profile        *StudentProfile  `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
