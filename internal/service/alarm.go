package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

// AlarmService sequences the reaction to a new emergency: alarm fan-out to
// every on-duty responder, nearest-responder dispatch, severity escalation
// and the alarm-sent mark on the incident. Every step is best-effort; a
// failed step is logged and the rest still run.
type AlarmService struct {
	db            *gorm.DB
	notifications *NotificationService
	dispatch      *DispatchService
	pusher        Pusher
}

func NewAlarmService(db *gorm.DB, notifications *NotificationService, dispatch *DispatchService, pusher Pusher) *AlarmService {
	if pusher == nil {
		pusher = NopPusher{}
	}
	return &AlarmService{db: db, notifications: notifications, dispatch: dispatch, pusher: pusher}
}

// Trigger runs the full alarm sequence for a freshly created emergency.
func (s *AlarmService) Trigger(ctx context.Context, em *models.Emergency) error {
	onDuty, err := s.onDutyResponders(ctx)
	if err != nil {
		return err
	}

	s.sendAlarm(ctx, em, onDuty)
	s.broadcastLive(em)

	var dispatched []models.EmergencyResponse
	if em.Latitude != "" && em.Longitude != "" {
		dispatched, err = s.dispatch.Dispatch(ctx, em)
		if err != nil {
			logger.Error("dispatch failed", zap.Uint("emergencyId", em.ID), zap.Error(err))
		}
	}
	s.logDispatches(ctx, em, dispatched)

	if err := s.markAlarmSent(ctx, em); err != nil {
		logger.Error("failed to mark alarm sent", zap.Uint("emergencyId", em.ID), zap.Error(err))
	}

	if em.Severity == models.SeverityHigh || em.Severity == models.SeverityCritical {
		s.notifyEmergencyServices(ctx, em)
	}
	return nil
}

func (s *AlarmService) onDutyResponders(ctx context.Context) ([]models.Security, error) {
	var roster []models.Security
	err := s.db.WithContext(ctx).
		Where("is_on_duty = ? AND status = ?", true, models.SecurityStatusActive).
		Find(&roster).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load on-duty responders")
	}
	return roster, nil
}

// sendAlarm persists an SOS alert per on-duty responder and pushes it to
// their devices.
func (s *AlarmService) sendAlarm(ctx context.Context, em *models.Emergency, onDuty []models.Security) {
	recipients := make([]uint, 0, len(onDuty))
	for _, sec := range onDuty {
		if sec.UserID != 0 {
			recipients = append(recipients, sec.UserID)
		}
	}
	if len(recipients) == 0 {
		logger.Warn("no on-duty responders for alarm", zap.Uint("emergencyId", em.ID))
		return
	}

	count, results, err := s.notifications.NotifyBulk(ctx, recipients, NotificationInput{
		Type:      models.NotificationTypeSOSAlert,
		Title:     fmt.Sprintf("🚨 EMERGENCY ALARM - %s", em.Type),
		Message:   alarmMessage(em),
		Icon:      "alarm",
		IconColor: "red",
		Data: models.JSONMap{
			"emergencyId": em.ID,
			"type":        em.Type,
			"severity":    em.Severity,
			"location":    em.Location,
			"latitude":    em.Latitude,
			"longitude":   em.Longitude,
		},
		RelatedEntityID:   fmt.Sprintf("%d", em.ID),
		RelatedEntityType: "emergency",
		CreatedBy:         em.UserID,
	})
	if err != nil {
		logger.Error("alarm fan-out failed", zap.Uint("emergencyId", em.ID), zap.Error(err))
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Pushed {
			failed++
		}
	}
	logger.Info("alarm fanned out",
		zap.Uint("emergencyId", em.ID),
		zap.Int64("persisted", count),
		zap.Int("pushFailures", failed))
}

// broadcastLive announces the incident on the live channels: everyone sees
// emergency:new, the security room additionally gets emergency:alert.
func (s *AlarmService) broadcastLive(em *models.Emergency) {
	payload := map[string]interface{}{
		"id":        em.ID,
		"type":      em.Type,
		"severity":  em.Severity,
		"location":  em.Location,
		"latitude":  em.Latitude,
		"longitude": em.Longitude,
		"createdAt": em.CreatedAt,
	}
	if err := s.pusher.Broadcast(websocket.EventEmergencyNew, payload); err != nil {
		logger.Warn("emergency:new broadcast failed", zap.Uint("emergencyId", em.ID), zap.Error(err))
	}
	if err := s.pusher.PushToRoom(websocket.RoomSecurity, websocket.EventEmergencyAlert, payload); err != nil {
		logger.Warn("emergency:alert push failed", zap.Uint("emergencyId", em.ID), zap.Error(err))
	}
}

// logDispatches writes an audit row per dispatched responder.
func (s *AlarmService) logDispatches(ctx context.Context, em *models.Emergency, dispatched []models.EmergencyResponse) {
	for _, resp := range dispatched {
		entry := models.SecurityLog{
			SecurityID:  resp.SecurityID,
			Action:      models.SecurityActionEmergencyResponse,
			Description: fmt.Sprintf("Dispatched to %s emergency #%d", em.Type, em.ID),
			Latitude:    em.Latitude,
			Longitude:   em.Longitude,
			EmergencyID: &em.ID,
		}
		if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
			logger.Warn("failed to write dispatch audit log",
				zap.Uint("securityId", resp.SecurityID), zap.Error(err))
		}
	}
}

func (s *AlarmService) markAlarmSent(ctx context.Context, em *models.Emergency) error {
	now := time.Now()
	err := s.db.WithContext(ctx).Model(em).Updates(map[string]interface{}{
		"alarm_sent":    true,
		"alarm_sent_at": now,
	}).Error
	if err != nil {
		return errors.Wrap(err, "failed to update alarm flag")
	}
	em.AlarmSent = true
	em.AlarmSentAt = &now
	return nil
}

// notifyEmergencyServices escalates HIGH and CRITICAL incidents to external
// services. The escalation is recorded as an incident-report audit row; the
// actual call-out is operated manually for now.
func (s *AlarmService) notifyEmergencyServices(ctx context.Context, em *models.Emergency) {
	entry := models.SecurityLog{
		Action:      models.SecurityActionIncidentReport,
		Description: fmt.Sprintf("Emergency services notified for %s emergency #%d (severity %s)", em.Type, em.ID, em.Severity),
		Latitude:    em.Latitude,
		Longitude:   em.Longitude,
		EmergencyID: &em.ID,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Error("failed to record emergency services escalation",
			zap.Uint("emergencyId", em.ID), zap.Error(err))
		return
	}
	logger.Warn("emergency services escalation",
		zap.Uint("emergencyId", em.ID),
		zap.String("severity", em.Severity),
		zap.String("location", em.Location))
}

func alarmMessage(em *models.Emergency) string {
	msg := fmt.Sprintf("%s emergency reported", em.Type)
	if em.Location != "" {
		msg += " at " + em.Location
	}
	if em.Details != "" {
		msg += ": " + em.Details
	}
	return msg
}
