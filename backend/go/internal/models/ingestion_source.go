package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SourceType identifies where an archived source came from.
type SourceType string

const (
	SourceTypeVideo SourceType = "video"
	SourceTypePDF   SourceType = "pdf"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	return t == SourceTypeVideo || t == SourceTypePDF
}

// IngestionSource is the relational record of one archived source for a user.
// The combination of UserID and SourceID is unique.
type IngestionSource struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	UserID      string     `gorm:"index:idx_user_source,unique;not null;size:255" json:"user_id"`
	SourceID    string     `gorm:"index:idx_user_source,unique;not null;size:255" json:"source_id"`
	SourceType  SourceType `gorm:"not null;size:16" json:"source_type"`
	DisplayName string     `gorm:"size:512" json:"display_name"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName pins the table name regardless of naming strategy.
func (IngestionSource) TableName() string {
	return "ingestion_sources"
}

// BeforeCreate assigns a UUID when none was set.
func (s *IngestionSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
