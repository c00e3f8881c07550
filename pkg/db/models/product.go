package models

import "github.com/shopspring/decimal"

// Product is a store-scoped catalog entry as served by the upstream API.
type Product struct {
	Base
	StoreID       string          `gorm:"column:store_id;not null" json:"store_id"`
	Name          string          `gorm:"column:name;not null" json:"name" validate:"required,max=200"`
	SKU           *string         `gorm:"column:sku" json:"sku,omitempty"`
	Barcode       *string         `gorm:"column:barcode" json:"barcode,omitempty"`
	Description   *string         `gorm:"column:description" json:"description,omitempty"`
	CategoryID    *string         `gorm:"column:category_id" json:"category_id,omitempty"`
	BrandID       *string         `gorm:"column:brand_id" json:"brand_id,omitempty"`
	SupplierID    *string         `gorm:"column:supplier_id" json:"supplier_id,omitempty"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price" validate:"gte=0"`
	CostPrice     decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null" json:"cost_price" validate:"gte=0"`
	StockQuantity int             `gorm:"column:stock_quantity;not null" json:"stock_quantity"`
	MinStockLevel int             `gorm:"column:min_stock_level;not null" json:"min_stock_level"`
	Unit          *string         `gorm:"column:unit" json:"unit,omitempty"`
	IsActive      bool            `gorm:"column:is_active;not null" json:"is_active"`
}

func (Product) TableName() string { return "products" }
