package models

import "time"

// Base is the shape every entity record shares. Server timestamps are
// mirrored as-is, so GORM must not stamp its own.
type Base struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt *time.Time `gorm:"column:created_at;autoCreateTime:false" json:"created_at,omitempty"`
	UpdatedAt *time.Time `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at,omitempty"`
	IsTemp    bool       `gorm:"column:is_temp;not null" json:"is_temp,omitempty"`
}

// RecordID returns the primary key.
func (b Base) RecordID() string {
	return b.ID
}

// SetRecordID overwrites the primary key.
func (b *Base) SetRecordID(id string) {
	b.ID = id
}

// Temp reports whether the record was created locally and not yet reconciled.
func (b Base) Temp() bool {
	return b.IsTemp
}

// SetTemp toggles the local-only flag.
func (b *Base) SetTemp(temp bool) {
	b.IsTemp = temp
}
