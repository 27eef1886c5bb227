package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Application status values for a StudentProfile. All three are mutually
// reachable; pending is the initial state.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// ErrGPARange is returned when a write carries a GPA outside [0,100].
// Violating writes are rejected, never clamped.
var ErrGPARange = errors.New("gpa must be between 0 and 100")

// ErrBadStatus is returned when a status value is not one of the three
// lifecycle states.
var ErrBadStatus = errors.New("invalid application status")

// StudentProfile is the enrollment record, one per user (UserID is both the
// owner and the natural key). UpdatedAt is stamped by GORM on every
// successful write; callers never supply it.
type StudentProfile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time `gorm:"index"`
	UserID    uint       `gorm:"uniqueIndex;not null"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`

	FirstName  string `gorm:"size:255;not null"`
	MiddleName string `gorm:"size:255"`
	LastName   string `gorm:"size:255;not null"`

	EnrollmentYear int     `gorm:"not null"`
	SchoolName     string  `gorm:"size:255;not null"`
	SchoolType     string  `gorm:"size:16;not null"` // public | private
	Municipality   string  `gorm:"size:255;not null"`
	Program        string  `gorm:"size:255;not null"`
	GPA            float64 `gorm:"not null"`

	MotherName   string `gorm:"size:255"`
	FatherName   string `gorm:"size:255"`
	GuardianName string `gorm:"size:255"`

	ContactNumber string `gorm:"size:64;not null"`
	HomeAddress   string `gorm:"size:512;not null"`
	Sex           string `gorm:"size:8;not null"` // male | female

	Status string `gorm:"size:16;not null;default:pending"`

	Documents []Document `gorm:"foreignKey:ProfileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// ValidStatus reports whether s is one of the lifecycle states.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// BeforeSave enforces the GPA and status invariants at the store level, so
// no write path can bypass them.
func (p *StudentProfile) BeforeSave(_ *gorm.DB) error {
	if p.GPA < 0 || p.GPA > 100 {
		return ErrGPARange
	}
	if p.Status != "" && !ValidStatus(p.Status) {
		return ErrBadStatus
	}
	return nil
}
