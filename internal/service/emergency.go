package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/metrics"
)

// emergencyTransitions is the legal successor table for emergency status
// updates. Terminal states have no successors.
var emergencyTransitions = map[string][]string{
	models.EmergencyStatusActive: {
		models.EmergencyStatusResolved,
		models.EmergencyStatusCancelled,
	},
}

var validSeverities = map[string]bool{
	models.SeverityLow:      true,
	models.SeverityMedium:   true,
	models.SeverityHigh:     true,
	models.SeverityCritical: true,
}

// CreateEmergencyInput is the SOS payload.
type CreateEmergencyInput struct {
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	Details        string `json:"details"`
	Location       string `json:"location"`
	Latitude       string `json:"latitude"`
	Longitude      string `json:"longitude"`
	NeedVolunteer  bool   `json:"needVolunteer"`
	VolunteerCount int    `json:"volunteerCount"`
	UserID         *uint  `json:"userId"` // nil allows anonymous SOS
}

// EmergencyStats aggregates incident counts.
type EmergencyStats struct {
	Total      int64            `json:"total"`
	Active     int64            `json:"active"`
	Resolved   int64            `json:"resolved"`
	Cancelled  int64            `json:"cancelled"`
	ByType     map[string]int64 `json:"byType"`
	BySeverity map[string]int64 `json:"bySeverity"`
}

// SecurityStats aggregates one responder's engagement history.
type SecurityStats struct {
	SecurityID          uint    `json:"securityId"`
	TotalResponses      int64   `json:"totalResponses"`
	ActiveResponses     int64   `json:"activeResponses"`
	CompletedResponses  int64   `json:"completedResponses"`
	AvgResponseTimeSecs float64 `json:"avgResponseTimeSecs"`
	CompletionRate      float64 `json:"completionRate"`
}

// EmergencyService owns the Emergency and EmergencyResponse lifecycles.
type EmergencyService struct {
	db            *gorm.DB
	notifications *NotificationService
	alarm         *AlarmService
}

func NewEmergencyService(db *gorm.DB, notifications *NotificationService, alarm *AlarmService) *EmergencyService {
	return &EmergencyService{db: db, notifications: notifications, alarm: alarm}
}

// Create validates and persists a new ACTIVE emergency, then triggers the
// alarm orchestrator. Alarm failures never fail the SOS itself.
func (s *EmergencyService) Create(ctx context.Context, in CreateEmergencyInput) (*models.Emergency, error) {
	if in.Type == "" {
		return nil, errors.InvalidRequest("emergency type is required")
	}
	severity := in.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}
	if !validSeverities[severity] {
		return nil, errors.InvalidRequest("invalid severity %q", in.Severity)
	}

	em := &models.Emergency{
		Type:           in.Type,
		Severity:       severity,
		Details:        in.Details,
		Location:       in.Location,
		Latitude:       in.Latitude,
		Longitude:      in.Longitude,
		NeedVolunteer:  in.NeedVolunteer,
		VolunteerCount: in.VolunteerCount,
		UserID:         in.UserID,
		Status:         models.EmergencyStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(em).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create emergency")
	}
	metrics.EmergenciesCreated.WithLabelValues(severity).Inc()
	logger.Info("emergency created",
		zap.Uint("id", em.ID), zap.String("type", em.Type), zap.String("severity", severity))

	if s.alarm != nil {
		if err := s.alarm.Trigger(ctx, em); err != nil {
			logger.Error("alarm orchestration failed",
				zap.Uint("emergencyId", em.ID), zap.Error(err))
		}
	}
	return em, nil
}

// GetByID loads one emergency with its responses and volunteers.
func (s *EmergencyService) GetByID(ctx context.Context, id uint) (*models.Emergency, error) {
	var em models.Emergency
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Responses").
		Preload("Responses.Security").
		Preload("Volunteers").
		First(&em, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.NotFound("emergency %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load emergency")
	}
	return &em, nil
}

// GetActive lists ACTIVE emergencies, newest first.
func (s *EmergencyService) GetActive(ctx context.Context) ([]models.Emergency, error) {
	var out []models.Emergency
	err := s.db.WithContext(ctx).
		Where("status = ?", models.EmergencyStatusActive).
		Order("created_at DESC").
		Preload("Responses").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list active emergencies")
	}
	return out, nil
}

// GetAll lists emergencies with pagination.
func (s *EmergencyService) GetAll(ctx context.Context, limit, offset int) ([]models.Emergency, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Emergency{}).Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count emergencies")
	}
	var out []models.Emergency
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list emergencies")
	}
	return out, total, nil
}

// GetByType lists emergencies of one type, newest first.
func (s *EmergencyService) GetByType(ctx context.Context, emType string) ([]models.Emergency, error) {
	if emType == "" {
		return nil, errors.InvalidRequest("emergency type is required")
	}
	var out []models.Emergency
	err := s.db.WithContext(ctx).
		Where("type = ?", emType).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list emergencies by type")
	}
	return out, nil
}

// UpdateStatus moves an emergency to a new status, enforcing the transition
// table: only ACTIVE emergencies move, and only to RESOLVED or CANCELLED.
func (s *EmergencyService) UpdateStatus(ctx context.Context, id uint, status string) (*models.Emergency, error) {
	if status == "" {
		return nil, errors.InvalidRequest("status is required")
	}

	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("emergency %d not found", id)
		}
		return nil, errors.Wrap(err, "failed to load emergency")
	}

	if !transitionAllowed(em.Status, status) {
		return nil, errors.IllegalTransition(
			"cannot move emergency %d from %s to %s", id, em.Status, status)
	}

	if err := s.db.WithContext(ctx).Model(&em).Update("status", status).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update emergency status")
	}
	em.Status = status
	if status == models.EmergencyStatusResolved {
		metrics.EmergenciesResolved.Inc()
	}
	return &em, nil
}

func transitionAllowed(from, to string) bool {
	for _, next := range emergencyTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ToggleNeedVolunteer updates the volunteer request on an emergency.
// Idempotent.
func (s *EmergencyService) ToggleNeedVolunteer(ctx context.Context, id uint, need bool, count int) (*models.Emergency, error) {
	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("emergency %d not found", id)
		}
		return nil, errors.Wrap(err, "failed to load emergency")
	}

	updates := map[string]interface{}{"need_volunteer": need}
	if count > 0 {
		updates["volunteer_count"] = count
	}
	if err := s.db.WithContext(ctx).Model(&em).Updates(updates).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update volunteer flag")
	}
	em.NeedVolunteer = need
	if count > 0 {
		em.VolunteerCount = count
	}
	return &em, nil
}

// RegisterVolunteer signs a resident up for an emergency. One registration
// per (emergency, user) pair.
func (s *EmergencyService) RegisterVolunteer(ctx context.Context, emergencyID, userID uint) (*models.Volunteer, error) {
	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, emergencyID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("emergency %d not found", emergencyID)
		}
		return nil, errors.Wrap(err, "failed to load emergency")
	}
	if em.IsTerminal() {
		return nil, errors.InvalidRequest("emergency %d is no longer active", emergencyID)
	}

	var existing int64
	err := s.db.WithContext(ctx).Model(&models.Volunteer{}).
		Where("emergency_id = ? AND user_id = ?", emergencyID, userID).
		Count(&existing).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to check volunteer registration")
	}
	if existing > 0 {
		return nil, errors.InvalidRequest("user %d already volunteered for emergency %d", userID, emergencyID)
	}

	v := &models.Volunteer{
		EmergencyID: emergencyID,
		UserID:      userID,
		Status:      models.VolunteerStatusRegistered,
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return nil, errors.Wrap(err, "failed to register volunteer")
	}
	return v, nil
}

// UpdateVolunteerStatus approves or rejects a volunteer registration.
func (s *EmergencyService) UpdateVolunteerStatus(ctx context.Context, volunteerID uint, status string) (*models.Volunteer, error) {
	if status != models.VolunteerStatusApproved && status != models.VolunteerStatusRejected {
		return nil, errors.InvalidRequest("invalid volunteer status %q", status)
	}

	var v models.Volunteer
	if err := s.db.WithContext(ctx).First(&v, volunteerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("volunteer %d not found", volunteerID)
		}
		return nil, errors.Wrap(err, "failed to load volunteer")
	}

	if err := s.db.WithContext(ctx).Model(&v).Update("status", status).Error; err != nil {
		return nil, errors.Wrap(err, "failed to update volunteer status")
	}
	v.Status = status

	s.notifyVolunteer(ctx, &v, status)
	return &v, nil
}

func (s *EmergencyService) notifyVolunteer(ctx context.Context, v *models.Volunteer, status string) {
	title := "Volunteer registration update"
	message := fmt.Sprintf("Your volunteer registration for emergency #%d is now %s.", v.EmergencyID, status)
	_, err := s.notifications.Notify(ctx, v.UserID, NotificationInput{
		Type:              models.NotificationTypeEmergency,
		Title:             title,
		Message:           message,
		Icon:              "hand-helping",
		RelatedEntityID:   fmt.Sprintf("%d", v.EmergencyID),
		RelatedEntityType: "emergency",
	})
	if err != nil {
		logger.Warn("volunteer notification failed", zap.Uint("userId", v.UserID), zap.Error(err))
	}
}

// Resolve moves the emergency to RESOLVED and closes every live response
// under it in one transaction, so no live response can survive a resolved
// incident.
func (s *EmergencyService) Resolve(ctx context.Context, id uint) (*models.Emergency, error) {
	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("emergency %d not found", id)
		}
		return nil, errors.Wrap(err, "failed to load emergency")
	}
	if !transitionAllowed(em.Status, models.EmergencyStatusResolved) {
		return nil, errors.IllegalTransition(
			"cannot resolve emergency %d in status %s", id, em.Status)
	}

	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&em).Update("status", models.EmergencyStatusResolved).Error; err != nil {
			return err
		}
		return tx.Model(&models.EmergencyResponse{}).
			Where("emergency_id = ? AND status IN ?", id, models.ResponseActiveStatuses).
			Updates(map[string]interface{}{
				"status":       models.ResponseStatusResolved,
				"completed_at": now,
			}).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve emergency")
	}
	em.Status = models.EmergencyStatusResolved
	metrics.EmergenciesResolved.Inc()
	logger.Info("emergency resolved", zap.Uint("id", id))

	s.notifyReporter(ctx, &em, "Emergency resolved",
		fmt.Sprintf("Your %s report has been resolved.", em.Type))
	return &em, nil
}

// Cancel moves the emergency to CANCELLED.
func (s *EmergencyService) Cancel(ctx context.Context, id uint) (*models.Emergency, error) {
	return s.UpdateStatus(ctx, id, models.EmergencyStatusCancelled)
}

// findResponse loads the single response for a (responder, emergency) pair
// in one of the expected states.
func (s *EmergencyService) findResponse(ctx context.Context, securityID, emergencyID uint, expected ...string) (*models.EmergencyResponse, error) {
	var resp models.EmergencyResponse
	err := s.db.WithContext(ctx).
		Where("security_id = ? AND emergency_id = ? AND status IN ?", securityID, emergencyID, expected).
		First(&resp).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.IllegalTransition(
			"no response in status %v for responder %d on emergency %d",
			expected, securityID, emergencyID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load emergency response")
	}
	return &resp, nil
}

// Accept marks a dispatched responder as en route and records how long the
// incident waited for acceptance.
func (s *EmergencyService) Accept(ctx context.Context, securityID, emergencyID uint) (*models.EmergencyResponse, error) {
	resp, err := s.findResponse(ctx, securityID, emergencyID, models.ResponseStatusDispatched)
	if err != nil {
		return nil, err
	}

	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, emergencyID).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load emergency")
	}

	responseTime := int(time.Since(em.CreatedAt).Seconds())
	if responseTime < 0 {
		responseTime = 0
	}
	err = s.db.WithContext(ctx).Model(resp).Updates(map[string]interface{}{
		"status":        models.ResponseStatusEnRoute,
		"response_time": responseTime,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept emergency")
	}
	resp.Status = models.ResponseStatusEnRoute
	resp.ResponseTime = responseTime

	err = s.db.WithContext(ctx).Model(&models.Security{}).
		Where("id = ?", securityID).
		Update("emergency_count", gorm.Expr("emergency_count + 1")).Error
	if err != nil {
		logger.Warn("failed to bump responder emergency count",
			zap.Uint("securityId", securityID), zap.Error(err))
	}

	s.notifyReporter(ctx, &em, "Responder en route",
		fmt.Sprintf("A responder accepted your %s report and is on the way.", em.Type))
	return resp, nil
}

// Arrive marks an en-route responder as on scene.
func (s *EmergencyService) Arrive(ctx context.Context, securityID, emergencyID uint) (*models.EmergencyResponse, error) {
	resp, err := s.findResponse(ctx, securityID, emergencyID, models.ResponseStatusEnRoute)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(resp).Updates(map[string]interface{}{
		"status":     models.ResponseStatusArrived,
		"arrived_at": now,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to record arrival")
	}
	resp.Status = models.ResponseStatusArrived
	resp.ArrivedAt = &now

	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, emergencyID).Error; err == nil {
		s.notifyReporter(ctx, &em, "Responder arrived",
			fmt.Sprintf("A responder has arrived at your %s report.", em.Type))
	}
	return resp, nil
}

// Complete closes out a responder's engagement and resolves the emergency.
func (s *EmergencyService) Complete(ctx context.Context, securityID, emergencyID uint, actionTaken, notes string) (*models.EmergencyResponse, error) {
	if actionTaken == "" {
		return nil, errors.InvalidRequest("actionTaken is required")
	}

	resp, err := s.findResponse(ctx, securityID, emergencyID,
		models.ResponseStatusArrived, models.ResponseStatusHandling)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(resp).Updates(map[string]interface{}{
		"status":       models.ResponseStatusResolved,
		"completed_at": now,
		"action_taken": actionTaken,
		"notes":        notes,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to complete response")
	}
	resp.Status = models.ResponseStatusResolved
	resp.CompletedAt = &now
	resp.ActionTaken = actionTaken
	resp.Notes = notes

	var em models.Emergency
	if err := s.db.WithContext(ctx).First(&em, emergencyID).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load emergency")
	}
	if em.Status == models.EmergencyStatusActive {
		if err := s.db.WithContext(ctx).Model(&em).Update("status", models.EmergencyStatusResolved).Error; err != nil {
			return nil, errors.Wrap(err, "failed to resolve emergency")
		}
		em.Status = models.EmergencyStatusResolved
		metrics.EmergenciesResolved.Inc()
	}

	s.notifyReporter(ctx, &em, "Emergency resolved",
		fmt.Sprintf("Your %s report was resolved: %s", em.Type, actionTaken))
	return resp, nil
}

// GetSecurityEmergencies lists a responder's engagements with their
// incidents, newest first.
func (s *EmergencyService) GetSecurityEmergencies(ctx context.Context, securityID uint) ([]models.EmergencyResponse, error) {
	var out []models.EmergencyResponse
	err := s.db.WithContext(ctx).
		Where("security_id = ?", securityID).
		Order("created_at DESC").
		Preload("Emergency").
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list responder engagements")
	}
	return out, nil
}

// GetSecurityStats aggregates one responder's performance.
func (s *EmergencyService) GetSecurityStats(ctx context.Context, securityID uint) (*SecurityStats, error) {
	stats := &SecurityStats{SecurityID: securityID}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.EmergencyResponse{}).
			Where("security_id = ?", securityID)
	}

	if err := base().Count(&stats.TotalResponses).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count responses")
	}
	if err := base().Where("status IN ?", models.ResponseActiveStatuses).Count(&stats.ActiveResponses).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count active responses")
	}
	if err := base().Where("status = ?", models.ResponseStatusResolved).Count(&stats.CompletedResponses).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count completed responses")
	}

	var avg sql.NullFloat64
	err := base().Where("response_time > 0").
		Select("AVG(response_time)").Scan(&avg).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to average response time")
	}
	if avg.Valid {
		stats.AvgResponseTimeSecs = avg.Float64
	}
	if stats.TotalResponses > 0 {
		stats.CompletionRate = float64(stats.CompletedResponses) / float64(stats.TotalResponses)
	}
	return stats, nil
}

// GetStats aggregates global incident counts.
func (s *EmergencyService) GetStats(ctx context.Context) (*EmergencyStats, error) {
	stats := &EmergencyStats{
		ByType:     make(map[string]int64),
		BySeverity: make(map[string]int64),
	}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Emergency{})
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count emergencies")
	}
	if err := base().Where("status = ?", models.EmergencyStatusActive).Count(&stats.Active).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count active emergencies")
	}
	if err := base().Where("status = ?", models.EmergencyStatusResolved).Count(&stats.Resolved).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count resolved emergencies")
	}
	if err := base().Where("status = ?", models.EmergencyStatusCancelled).Count(&stats.Cancelled).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count cancelled emergencies")
	}

	var grouped []struct {
		Key   string
		Count int64
	}
	if err := base().Select("type AS key, COUNT(*) AS count").Group("type").Scan(&grouped).Error; err != nil {
		return nil, errors.Wrap(err, "failed to group emergencies by type")
	}
	for _, g := range grouped {
		stats.ByType[g.Key] = g.Count
	}

	grouped = grouped[:0]
	if err := base().Select("severity AS key, COUNT(*) AS count").Group("severity").Scan(&grouped).Error; err != nil {
		return nil, errors.Wrap(err, "failed to group emergencies by severity")
	}
	for _, g := range grouped {
		stats.BySeverity[g.Key] = g.Count
	}
	return stats, nil
}

func (s *EmergencyService) notifyReporter(ctx context.Context, em *models.Emergency, title, message string) {
	if em.UserID == nil {
		return
	}
	_, err := s.notifications.Notify(ctx, *em.UserID, NotificationInput{
		Type:              models.NotificationTypeEmergency,
		Title:             title,
		Message:           message,
		Icon:              "shield-check",
		RelatedEntityID:   fmt.Sprintf("%d", em.ID),
		RelatedEntityType: "emergency",
	})
	if err != nil {
		logger.Warn("reporter notification failed",
			zap.Uint("emergencyId", em.ID), zap.Error(err))
	}
}
