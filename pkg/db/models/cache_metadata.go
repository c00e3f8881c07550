package models

import "github.com/angelmondragon/posdesk/pkg/enums"

// CacheMetadata records when a collection was last refreshed from upstream.
type CacheMetadata struct {
	Table    enums.Collection `gorm:"column:table_name;primaryKey" json:"table"`
	LastSync int64            `gorm:"column:last_sync;not null" json:"last_sync"`
	Version  int64            `gorm:"column:version;not null" json:"version"`
	Checksum string           `gorm:"column:checksum;not null" json:"checksum"`
}

func (CacheMetadata) TableName() string { return "cache_metadata" }

func (m CacheMetadata) RecordID() string { return string(m.Table) }
