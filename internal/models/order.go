package models

import "time"

// Order is an append-only record of a completed conversation.
type Order struct {
	ID              uint      `gorm:"primaryKey;autoIncrement"`
	Ref             string    `gorm:"size:36;uniqueIndex;not null"`
	Tenant          string    `gorm:"size:128;not null;index:idx_tenant_created"`
	Identity        string    `gorm:"size:128;not null"`
	Items           string    `gorm:"type:text;not null"` // JSON array of {name, price}
	Total           float64   `gorm:"not null"`
	FulfillmentType string    `gorm:"size:16;not null"` // attendant, pickup, delivery
	CustomerName    string    `gorm:"size:256"`
	Phone           string    `gorm:"size:64"`
	Address         string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"index:idx_tenant_created"`
}

// OrderLine is one entry of Order.Items.
type OrderLine struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}
