package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a resident account. Only the fields the coordination core needs
// are modeled here.
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	NamaLengkap string    `gorm:"size:128;not null" json:"namaLengkap"`
	Email       string    `gorm:"size:128;uniqueIndex" json:"email"`
	Phone       string    `gorm:"size:32" json:"phone"`
	// Neighborhood unit, e.g. "RT 05/RW 02"; audience targeting matches on
	// a substring of this field.
	RtRw      string    `gorm:"size:32;index" json:"rtRw"`
	IsActive  bool      `gorm:"default:true;index" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Emergency{},
		&EmergencyResponse{},
		&Volunteer{},
		&Security{},
		&SecurityLog{},
		&Notification{},
	)
}
