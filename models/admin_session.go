package models

import "time"

// AdminSession is the server-side record behind an admin session token.
type AdminSession struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// OrderSequence is the per-day counter reference numbers are drawn from.
type OrderSequence struct {
	Day       string `gorm:"primaryKey;type:varchar(8)"`
	LastValue int    `gorm:"not null"`
}
