package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

// SecurityService manages the responder duty roster: check-in/out, location
// reports and device registration. Dispatch reads this roster.
type SecurityService struct {
	db     *gorm.DB
	pusher Pusher
}

func NewSecurityService(db *gorm.DB, pusher Pusher) *SecurityService {
	if pusher == nil {
		pusher = NopPusher{}
	}
	return &SecurityService{db: db, pusher: pusher}
}

func (s *SecurityService) GetByID(ctx context.Context, id uint) (*models.Security, error) {
	var sec models.Security
	err := s.db.WithContext(ctx).First(&sec, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NotFound("security %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load security")
	}
	return &sec, nil
}

// CheckIn puts a responder on duty, optionally with a starting position.
func (s *SecurityService) CheckIn(ctx context.Context, id uint, latitude, longitude string) (*models.Security, error) {
	sec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sec.Status != models.SecurityStatusActive {
		return nil, errors.InvalidRequest("security %d is %s and cannot check in", id, sec.Status)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_on_duty":    true,
		"last_check_in": now,
	}
	if latitude != "" && longitude != "" {
		updates["current_latitude"] = latitude
		updates["current_longitude"] = longitude
	}
	if err := s.db.WithContext(ctx).Model(sec).Updates(updates).Error; err != nil {
		return nil, errors.Wrap(err, "failed to check in")
	}
	sec.IsOnDuty = true
	sec.LastCheckIn = &now

	s.logAction(ctx, id, models.SecurityActionCheckIn, "Checked in for duty", latitude, longitude, nil)
	return sec, nil
}

// CheckOut takes a responder off duty.
func (s *SecurityService) CheckOut(ctx context.Context, id uint) (*models.Security, error) {
	sec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(sec).Updates(map[string]interface{}{
		"is_on_duty":     false,
		"last_check_out": now,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to check out")
	}
	sec.IsOnDuty = false
	sec.LastCheckOut = &now

	s.logAction(ctx, id, models.SecurityActionCheckOut, "Checked out from duty", "", "", nil)
	return sec, nil
}

// UpdateLocation stores a responder's position and rebroadcasts it to the
// security room so other responders can see the live map.
func (s *SecurityService) UpdateLocation(ctx context.Context, id uint, latitude, longitude string) (*models.Security, error) {
	if latitude == "" || longitude == "" {
		return nil, errors.InvalidRequest("latitude and longitude are required")
	}
	sec, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(sec).Updates(map[string]interface{}{
		"current_latitude":  latitude,
		"current_longitude": longitude,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to update location")
	}
	sec.CurrentLatitude = &latitude
	sec.CurrentLongitude = &longitude

	s.logAction(ctx, id, models.SecurityActionLocationUpdate, "Location updated", latitude, longitude, nil)

	if err := s.pusher.PushToRoom(websocket.RoomSecurity, websocket.EventSecurityLocation, map[string]interface{}{
		"securityId": id,
		"latitude":   latitude,
		"longitude":  longitude,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		logger.Debug("location rebroadcast failed", zap.Uint("securityId", id), zap.Error(err))
	}
	return sec, nil
}

// SetDeviceToken stores the responder's push channel token.
func (s *SecurityService) SetDeviceToken(ctx context.Context, id uint, token string) error {
	res := s.db.WithContext(ctx).Model(&models.Security{}).
		Where("id = ?", id).
		Update("device_token", token)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to store device token")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("security %d not found", id)
	}
	return nil
}

// ActiveRoster lists responders currently on duty.
func (s *SecurityService) ActiveRoster(ctx context.Context) ([]models.Security, error) {
	var roster []models.Security
	err := s.db.WithContext(ctx).
		Where("is_on_duty = ? AND status = ?", true, models.SecurityStatusActive).
		Order("nama ASC").
		Find(&roster).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active roster")
	}
	return roster, nil
}

// Logs lists a responder's audit trail, newest first.
func (s *SecurityService) Logs(ctx context.Context, securityID uint, limit int) ([]models.SecurityLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.SecurityLog
	err := s.db.WithContext(ctx).
		Where("security_id = ?", securityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list security logs")
	}
	return out, nil
}

func (s *SecurityService) logAction(ctx context.Context, securityID uint, action, description, latitude, longitude string, emergencyID *uint) {
	entry := models.SecurityLog{
		SecurityID:  securityID,
		Action:      action,
		Description: description,
		Latitude:    latitude,
		Longitude:   longitude,
		EmergencyID: emergencyID,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Warn("failed to write security log",
			zap.Uint("securityId", securityID), zap.String("action", action), zap.Error(err))
	}
}
