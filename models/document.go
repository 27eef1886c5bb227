package models

import "time"

// Document is the metadata row for one uploaded file. The blob itself lives
// behind StorePath in the blob store; StorePath's first path segment is the
// owning user id, which is how blob access derives ownership without a join.
// CreatedAt doubles as the upload timestamp.
type Document struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProfileID   uint           `gorm:"index;not null"`
	Profile     StudentProfile `gorm:"foreignKey:ProfileID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	UserID      uint           `gorm:"index;not null"` // owning user, mirrors StorePath's first segment
	DocType     string         `gorm:"size:64;not null"`
	FileName    string         `gorm:"size:255;not null"`
	StorePath   string         `gorm:"column:store_path;size:512;not null;uniqueIndex"`
	Size        int64          `gorm:"not null"`
	ContentType string         `gorm:"size:128"`
	// PreviewPath is set when the upload was an image and a review
	// thumbnail could be generated.
	PreviewPath string `gorm:"size:512"`
}
