package models

import "time"

// Security duty states.
const (
	SecurityStatusActive    = "ACTIVE"
	SecurityStatusInactive  = "INACTIVE"
	SecurityStatusSuspended = "SUSPENDED"
)

// Security is a registered responder (neighborhood security officer).
type Security struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Nama string `gorm:"size:128;not null" json:"nama"`
	// Resident account behind this responder; notification rows are
	// addressed to it.
	UserID   uint   `gorm:"index" json:"userId"`
	Phone    string `gorm:"size:32" json:"phone"`
	Status   string `gorm:"size:16;default:ACTIVE" json:"status"`
	IsOnDuty bool   `gorm:"index" json:"isOnDuty"`
	// Last reported position; nil until the first location update.
	CurrentLatitude  *string    `gorm:"size:32" json:"currentLatitude"`
	CurrentLongitude *string    `gorm:"size:32" json:"currentLongitude"`
	LastCheckIn      *time.Time `json:"lastCheckIn"`
	LastCheckOut     *time.Time `json:"lastCheckOut"`
	DeviceToken      string     `gorm:"size:255" json:"-"`
	EmergencyCount   int        `json:"emergencyCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// HasLocation reports whether the responder has a usable position.
func (s *Security) HasLocation() bool {
	return s.CurrentLatitude != nil && s.CurrentLongitude != nil &&
		*s.CurrentLatitude != "" && *s.CurrentLongitude != ""
}

// Security log actions.
const (
	SecurityActionCheckIn           = "CHECK_IN"
	SecurityActionCheckOut          = "CHECK_OUT"
	SecurityActionEmergencyResponse = "EMERGENCY_RESPONSE"
	SecurityActionLocationUpdate    = "LOCATION_UPDATE"
	SecurityActionIncidentReport    = "INCIDENT_REPORT"
	SecurityActionPatrolStart       = "PATROL_START"
	SecurityActionPatrolEnd         = "PATROL_END"
)

// SecurityLog is the audit trail of responder activity.
type SecurityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SecurityID  uint      `gorm:"index;not null" json:"securityId"`
	Action      string    `gorm:"size:32;not null;index" json:"action"`
	Description string    `gorm:"type:text" json:"description"`
	Latitude    string    `gorm:"size:32" json:"latitude"`
	Longitude   string    `gorm:"size:32" json:"longitude"`
	EmergencyID *uint     `gorm:"index" json:"emergencyId"`
	CreatedAt   time.Time `json:"createdAt"`

	Security *Security `gorm:"foreignKey:SecurityID" json:"security,omitempty"`
}
