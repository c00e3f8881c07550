package models

// Category groups products within a business.
type Category struct {
	Base
	BusinessID  string  `gorm:"column:business_id;not null" json:"business_id"`
	Name        string  `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	Description *string `gorm:"column:description" json:"description,omitempty"`
	ParentID    *string `gorm:"column:parent_id" json:"parent_id,omitempty"`
}

func (Category) TableName() string { return "categories" }

type Brand struct {
	Base
	BusinessID  string  `gorm:"column:business_id;not null" json:"business_id"`
	Name        string  `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	Description *string `gorm:"column:description" json:"description,omitempty"`
}

func (Brand) TableName() string { return "brands" }

type Supplier struct {
	Base
	BusinessID  string  `gorm:"column:business_id;not null" json:"business_id"`
	Name        string  `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	ContactName *string `gorm:"column:contact_name" json:"contact_name,omitempty"`
	Email       *string `gorm:"column:email" json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string `gorm:"column:phone" json:"phone,omitempty"`
	Address     *string `gorm:"column:address" json:"address,omitempty"`
}

func (Supplier) TableName() string { return "suppliers" }
