package models

// Language, Currency and Country are global lookup tables shared by every tenant.
type Language struct {
	ID   string `gorm:"column:id;primaryKey" json:"id"`
	Code string `gorm:"column:code;not null" json:"code"`
	Name string `gorm:"column:name;not null" json:"name"`
}

func (Language) TableName() string { return "languages" }

func (l Language) RecordID() string { return l.ID }

type Currency struct {
	ID            string `gorm:"column:id;primaryKey" json:"id"`
	Code          string `gorm:"column:code;not null" json:"code"`
	Name          string `gorm:"column:name;not null" json:"name"`
	Symbol        string `gorm:"column:symbol" json:"symbol"`
	DecimalPlaces int    `gorm:"column:decimal_places;not null" json:"decimal_places"`
}

func (Currency) TableName() string { return "currencies" }

func (c Currency) RecordID() string { return c.ID }

type Country struct {
	ID           string  `gorm:"column:id;primaryKey" json:"id"`
	Code         string  `gorm:"column:code;not null" json:"code"`
	Name         string  `gorm:"column:name;not null" json:"name"`
	CurrencyCode *string `gorm:"column:currency_code" json:"currency_code,omitempty"`
}

func (Country) TableName() string { return "countries" }

func (c Country) RecordID() string { return c.ID }
