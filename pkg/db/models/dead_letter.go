package models

import (
	"gorm.io/datatypes"

	"github.com/angelmondragon/posdesk/pkg/enums"
)

// DeadLetter captures a queued mutation the replay driver gave up on.
type DeadLetter struct {
	ID           string                 `gorm:"column:id;primaryKey" json:"id"`
	QueueID      string                 `gorm:"column:queue_id;not null" json:"queue_id"`
	Operation    enums.SyncOperation    `gorm:"column:operation;not null" json:"operation"`
	Table        enums.Collection       `gorm:"column:target_table;not null" json:"table"`
	Data         datatypes.JSON         `gorm:"column:data;type:text;not null" json:"data"`
	Timestamp    int64                  `gorm:"column:timestamp;not null" json:"timestamp"`
	RetryCount   int                    `gorm:"column:retry_count;not null" json:"retry_count"`
	Reason       enums.DeadLetterReason `gorm:"column:reason;not null" json:"reason"`
	ErrorMessage *string                `gorm:"column:error_message" json:"error_message,omitempty"`
	FailedAt     int64                  `gorm:"column:failed_at;not null" json:"failed_at"`
}

func (DeadLetter) TableName() string { return "sync_dead_letters" }

func (d DeadLetter) RecordID() string { return d.ID }
