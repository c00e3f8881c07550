package models

import "gorm.io/datatypes"

// SavedCart is a parked POS cart. CartData is opaque to the agent.
type SavedCart struct {
	Base
	StoreID    string         `gorm:"column:store_id;not null" json:"store_id"`
	CashierID  string         `gorm:"column:cashier_id;not null" json:"cashier_id" validate:"required"`
	CustomerID *string        `gorm:"column:customer_id" json:"customer_id,omitempty"`
	Name       *string        `gorm:"column:name" json:"name,omitempty"`
	CartData   datatypes.JSON `gorm:"column:cart_data;type:text" json:"cart_data"`
}

func (SavedCart) TableName() string { return "saved_carts" }
