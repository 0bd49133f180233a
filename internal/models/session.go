package models

import "time"

// Session is the durable conversation state for one (identity, tenant) pair.
type Session struct {
	Identity   string `gorm:"primaryKey;size:128"`
	Tenant     string `gorm:"primaryKey;size:128"`
	State      string `gorm:"size:32;not null"`
	OrderItems string `gorm:"type:text"` // JSON array of menu items, insertion order
	FullName   string `gorm:"size:256"`
	Phone      string `gorm:"size:64"`
	Address    string `gorm:"type:text"`
	UpdatedAt  time.Time
}

// Cooldown suppresses re-engagement for a pair until Until.
type Cooldown struct {
	Identity string    `gorm:"primaryKey;size:128"`
	Tenant   string    `gorm:"primaryKey;size:128"`
	Until    time.Time `gorm:"column:cooldown_until;not null;index"`
}
