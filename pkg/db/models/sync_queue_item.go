package models

import (
	"gorm.io/datatypes"

	"github.com/angelmondragon/posdesk/pkg/enums"
)

// SyncQueueItem is a mutation performed while offline, waiting for replay.
// Timestamps are unix milliseconds; LastRetry is zero until the first failed attempt.
type SyncQueueItem struct {
	ID         string              `gorm:"column:id;primaryKey" json:"id"`
	Operation  enums.SyncOperation `gorm:"column:operation;not null" json:"operation"`
	Table      enums.Collection    `gorm:"column:target_table;not null" json:"table"`
	Data       datatypes.JSON      `gorm:"column:data;type:text;not null" json:"data"`
	Timestamp  int64               `gorm:"column:timestamp;not null" json:"timestamp"`
	RetryCount int                 `gorm:"column:retry_count;not null" json:"retry_count"`
	LastRetry  int64               `gorm:"column:last_retry;not null" json:"last_retry"`
	LastError  *string             `gorm:"column:last_error" json:"last_error,omitempty"`
}

func (SyncQueueItem) TableName() string { return "sync_queue" }

func (i SyncQueueItem) RecordID() string { return i.ID }
