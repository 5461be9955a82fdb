package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification types.
const (
	NotificationTypeSystem        = "SYSTEM"
	NotificationTypeAnnouncement  = "ANNOUNCEMENT"
	NotificationTypeEmergency     = "EMERGENCY"
	NotificationTypeSOSAlert      = "SOS_ALERT"
	NotificationTypePayment       = "PAYMENT"
	NotificationTypeLetterRequest = "LETTER_REQUEST"
	NotificationTypeActivity      = "ACTIVITY"
)

// JSONMap stores arbitrary event payloads in a single column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", value)
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

// Notification is one delivered-or-pending message for a single recipient.
// Fan-out to an audience creates one row per recipient.
type Notification struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	UserID    uint    `gorm:"index;not null" json:"userId"`
	Type      string  `gorm:"size:32;not null;index" json:"type"`
	Title     string  `gorm:"size:255;not null" json:"title"`
	Message   string  `gorm:"type:text" json:"message"`
	Icon      string  `gorm:"size:64" json:"icon"`
	IconColor string  `gorm:"size:32" json:"iconColor"`
	Data      JSONMap `gorm:"type:text" json:"data"`

	IsRead     bool       `gorm:"index" json:"isRead"`
	ReadAt     *time.Time `json:"readAt"`
	IsArchived bool       `json:"isArchived"`

	// Related entity lets a whole group of notifications be cleaned up when
	// the entity they refer to goes away.
	RelatedEntityID   string `gorm:"size:64;index:idx_notification_related" json:"relatedEntityId"`
	RelatedEntityType string `gorm:"size:32;index:idx_notification_related" json:"relatedEntityType"`

	CreatedBy *uint      `json:"createdBy"`
	ExpiresAt *time.Time `gorm:"index" json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
