package models

// Store is a physical location owned by a business.
type Store struct {
	Base
	BusinessID string  `gorm:"column:business_id;not null" json:"business_id"`
	Name       string  `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	Address    *string `gorm:"column:address" json:"address,omitempty"`
	Phone      *string `gorm:"column:phone" json:"phone,omitempty"`
	Email      *string `gorm:"column:email" json:"email,omitempty" validate:"omitempty,email"`
	IsActive   bool    `gorm:"column:is_active;not null" json:"is_active"`
}

func (Store) TableName() string { return "stores" }
