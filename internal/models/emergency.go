package models

import "time"

// Emergency lifecycle states.
const (
	EmergencyStatusActive    = "ACTIVE"
	EmergencyStatusResolved  = "RESOLVED"
	EmergencyStatusCancelled = "CANCELLED"
)

// Emergency severity levels.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Common emergency types. Type is free-form; these are the ones the mobile
// clients send.
const (
	EmergencyTypeFire     = "KEBAKARAN"
	EmergencyTypeCrime    = "PENCURIAN"
	EmergencyTypeMedical  = "MEDIS"
	EmergencyTypeAccident = "KECELAKAAN"
	EmergencyTypeOther    = "LAINNYA"
)

// Emergency is an SOS incident reported by a resident.
type Emergency struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	Type          string `gorm:"size:64;not null" json:"type"`
	Severity      string `gorm:"size:16;default:MEDIUM" json:"severity"`
	Details       string `gorm:"type:text" json:"details"`
	Location      string `gorm:"size:255" json:"location"`
	// Coordinates arrive as strings from clients; unparsable values stay
	// stored but are skipped by dispatch.
	Latitude      string     `gorm:"size:32" json:"latitude"`
	Longitude     string     `gorm:"size:32" json:"longitude"`
	NeedVolunteer bool       `json:"needVolunteer"`
	VolunteerCount int       `json:"volunteerCount"`
	UserID        *uint      `gorm:"index" json:"userId"` // nil for anonymous reports
	Status        string     `gorm:"size:16;default:ACTIVE;index" json:"status"`
	AlarmSent     bool       `json:"alarmSent"`
	AlarmSentAt   *time.Time `json:"alarmSentAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`

	User      *User               `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Responses []EmergencyResponse `gorm:"foreignKey:EmergencyID" json:"responses,omitempty"`
	Volunteers []Volunteer        `gorm:"foreignKey:EmergencyID" json:"volunteers,omitempty"`
}

// IsTerminal reports whether the emergency reached a final state.
func (e *Emergency) IsTerminal() bool {
	return e.Status == EmergencyStatusResolved || e.Status == EmergencyStatusCancelled
}

// Response lifecycle states.
const (
	ResponseStatusDispatched = "DISPATCHED"
	ResponseStatusEnRoute    = "EN_ROUTE"
	ResponseStatusArrived    = "ARRIVED"
	ResponseStatusHandling   = "HANDLING"
	ResponseStatusResolved   = "RESOLVED"
)

// ResponseActiveStatuses are the non-terminal response states.
var ResponseActiveStatuses = []string{
	ResponseStatusDispatched,
	ResponseStatusEnRoute,
	ResponseStatusArrived,
	ResponseStatusHandling,
}

// EmergencyResponse links a responder to an emergency and tracks their
// progress toward resolving it.
type EmergencyResponse struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	EmergencyID uint   `gorm:"index;not null" json:"emergencyId"`
	SecurityID  uint   `gorm:"index;not null" json:"securityId"`
	Status      string `gorm:"size:16;default:DISPATCHED" json:"status"`
	// Seconds between the emergency being reported and this responder
	// accepting it; zero until acceptance.
	ResponseTime int        `json:"responseTime"`
	ArrivedAt    *time.Time `json:"arrivedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
	ActionTaken  string     `gorm:"type:text" json:"actionTaken"`
	Notes        string     `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`

	Emergency *Emergency `gorm:"foreignKey:EmergencyID" json:"emergency,omitempty"`
	Security  *Security  `gorm:"foreignKey:SecurityID" json:"security,omitempty"`
}

// Volunteer registration states.
const (
	VolunteerStatusRegistered = "REGISTERED"
	VolunteerStatusApproved   = "APPROVED"
	VolunteerStatusRejected   = "REJECTED"
)

// Volunteer is a resident who signed up to help with an emergency.
type Volunteer struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EmergencyID uint      `gorm:"index;not null;uniqueIndex:idx_volunteer_emergency_user" json:"emergencyId"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_volunteer_emergency_user" json:"userId"`
	Status      string    `gorm:"size:16;default:REGISTERED" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
