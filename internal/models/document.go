package models

import "time"

// Collection namespaces stored documents, one per uploading user under a
// single root.
type Collection struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Name     string `gorm:"size:128;uniqueIndex;not null"`
	ParentID *uint  `gorm:"index"`
}

// Document is a stored file. Path is relative to the document root.
type Document struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	Title            string `gorm:"size:255"`
	FileName         string `gorm:"size:255"`
	Path             string `gorm:"size:512;not null"`
	Size             int64
	CollectionID     uint  `gorm:"index"`
	UploadedByUserID *uint `gorm:"index"`
	CreatedAt        time.Time

	Collection Collection `gorm:"foreignKey:CollectionID"`
}
