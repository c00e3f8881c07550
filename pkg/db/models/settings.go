package models

import (
	"time"

	"gorm.io/datatypes"
)

// BusinessSettings is keyed by its owning business; there is no synthetic id.
type BusinessSettings struct {
	BusinessID   string         `gorm:"column:business_id;primaryKey" json:"business_id"`
	CurrencyCode string         `gorm:"column:currency_code" json:"currency_code"`
	LanguageCode string         `gorm:"column:language_code" json:"language_code"`
	CountryCode  string         `gorm:"column:country_code" json:"country_code"`
	Timezone     string         `gorm:"column:timezone" json:"timezone"`
	Extras       datatypes.JSON `gorm:"column:extras;type:text" json:"extras,omitempty"`
	UpdatedAt    *time.Time     `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at,omitempty"`
}

func (BusinessSettings) TableName() string { return "business_settings" }

func (s BusinessSettings) RecordID() string { return s.BusinessID }

func (s *BusinessSettings) SetRecordID(id string) { s.BusinessID = id }

// StoreSettings is keyed by its owning store.
type StoreSettings struct {
	StoreID       string         `gorm:"column:store_id;primaryKey" json:"store_id"`
	TaxRate       float64        `gorm:"column:tax_rate;not null" json:"tax_rate"`
	TaxInclusive  bool           `gorm:"column:tax_inclusive;not null" json:"tax_inclusive"`
	ReceiptHeader *string        `gorm:"column:receipt_header" json:"receipt_header,omitempty"`
	ReceiptFooter *string        `gorm:"column:receipt_footer" json:"receipt_footer,omitempty"`
	Extras        datatypes.JSON `gorm:"column:extras;type:text" json:"extras,omitempty"`
	UpdatedAt     *time.Time     `gorm:"column:updated_at;autoUpdateTime:false" json:"updated_at,omitempty"`
}

func (StoreSettings) TableName() string { return "store_settings" }

func (s StoreSettings) RecordID() string { return s.StoreID }

func (s *StoreSettings) SetRecordID(id string) { s.StoreID = id }
