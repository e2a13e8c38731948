package models

import (
	"time"

	"gorm.io/datatypes"
)

// CollectionRow stores the draft head of one collection.
type CollectionRow struct {
	Kind         string         `gorm:"primaryKey;size:32"`
	ID           string         `gorm:"primaryKey;size:64"`
	Name         string         `gorm:"size:256"`
	DraftVersion int            `gorm:"not null"`
	Checksum     string         `gorm:"size:64;not null"`
	Entries      datatypes.JSON `gorm:"not null"`
	Document     datatypes.JSON
	CreatedAt    time.Time
	UpdatedAt    time.Time `gorm:"autoUpdateTime:false"`
}

func (CollectionRow) TableName() string { return "collections" }

// PublishedRow is one append-only published snapshot.
type PublishedRow struct {
	Kind         string         `gorm:"primaryKey;size:32"`
	CollectionID string         `gorm:"primaryKey;size:64"`
	Version      int            `gorm:"primaryKey"`
	Checksum     string         `gorm:"size:64;not null"`
	Name         string         `gorm:"size:256"`
	Entries      datatypes.JSON `gorm:"not null"`
	Document     datatypes.JSON
	PublishedAt  time.Time `gorm:"not null;index"`
}

func (PublishedRow) TableName() string { return "collection_published_versions" }
