package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Sale is a completed POS transaction. Line items travel with the sale and are
// stored as a JSON column.
type Sale struct {
	Base
	StoreID        string                        `gorm:"column:store_id;not null" json:"store_id"`
	CashierID      string                        `gorm:"column:cashier_id;not null" json:"cashier_id" validate:"required"`
	CustomerID     *string                       `gorm:"column:customer_id" json:"customer_id,omitempty"`
	ReceiptNumber  *string                       `gorm:"column:receipt_number" json:"receipt_number,omitempty"`
	Items          datatypes.JSONSlice[SaleItem] `gorm:"column:items;type:text" json:"items" validate:"required,min=1,dive"`
	Subtotal       decimal.Decimal               `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal" validate:"gte=0"`
	TaxAmount      decimal.Decimal               `gorm:"column:tax_amount;type:numeric(12,2);not null" json:"tax_amount" validate:"gte=0"`
	DiscountAmount decimal.Decimal               `gorm:"column:discount_amount;type:numeric(12,2);not null" json:"discount_amount" validate:"gte=0"`
	TotalAmount    decimal.Decimal               `gorm:"column:total_amount;type:numeric(12,2);not null" json:"total_amount" validate:"gte=0"`
	PaymentMethod  string                        `gorm:"column:payment_method;not null" json:"payment_method" validate:"required"`
	Status         string                        `gorm:"column:status;not null" json:"status"`
}

func (Sale) TableName() string { return "sales" }

// SaleItem is one line of a sale.
type SaleItem struct {
	ID        string          `json:"id,omitempty"`
	SaleID    string          `json:"sale_id,omitempty"`
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0"`
	Total     decimal.Decimal `json:"total" validate:"gte=0"`
}
