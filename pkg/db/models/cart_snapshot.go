package models

import "time"

// CartSnapshot holds the serialized line items of one cart, keyed by its storage key.
type CartSnapshot struct {
	Key       string    `gorm:"column:cart_key;primaryKey;size:255"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
