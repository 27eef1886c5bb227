package models

import "time"

// Role is the master list of role names with descriptions, seeded at startup.
type Role struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string `gorm:"size:32;uniqueIndex;not null"`
	Description string `gorm:"size:255"`
}

// RoleAssignment grants one role to one user. The (user_id, role) pair is
// unique: a user cannot hold the same role twice but may hold several roles.
// The role name is stored denormalized so a role check reads a single row.
type RoleAssignment struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint   `gorm:"not null;uniqueIndex:idx_user_role"`
	Role      string `gorm:"size:32;not null;uniqueIndex:idx_user_role"`
}
