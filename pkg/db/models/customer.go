package models

// Customer belongs to a single store.
type Customer struct {
	Base
	StoreID       string  `gorm:"column:store_id;not null" json:"store_id"`
	Name          string  `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	Email         *string `gorm:"column:email" json:"email,omitempty" validate:"omitempty,email"`
	Phone         *string `gorm:"column:phone" json:"phone,omitempty"`
	Address       *string `gorm:"column:address" json:"address,omitempty"`
	LoyaltyPoints int     `gorm:"column:loyalty_points;not null" json:"loyalty_points"`
	Notes         *string `gorm:"column:notes" json:"notes,omitempty"`
}

func (Customer) TableName() string { return "customers" }
