package model

import "time"

// OrderDeadline is the persisted payment deadline of one order, the
// server-side equivalent of the storefront's local expiry timestamp.
type OrderDeadline struct {
	OrderNumber string    `gorm:"primaryKey;size:64;not null"`
	ExpiresAt   time.Time `gorm:"index;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
