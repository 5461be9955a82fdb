package service

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/geo"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/metrics"
)

// DispatchWidth is how many of the nearest responders get a dispatch order
// per incident.
const DispatchWidth = 3

// rankedResponder pairs a roster entry with its distance to the incident.
type rankedResponder struct {
	security models.Security
	distance float64
}

// DispatchService selects the nearest on-duty responders for an incident and
// creates their response records.
type DispatchService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewDispatchService(db *gorm.DB, notifications *NotificationService) *DispatchService {
	return &DispatchService{db: db, notifications: notifications}
}

// eligibleResponders returns on-duty, active responders that have reported a
// position.
func (s *DispatchService) eligibleResponders(ctx context.Context) ([]models.Security, error) {
	var roster []models.Security
	err := s.db.WithContext(ctx).
		Where("is_on_duty = ? AND status = ?", true, models.SecurityStatusActive).
		Where("current_latitude IS NOT NULL AND current_longitude IS NOT NULL").
		Where("current_latitude <> '' AND current_longitude <> ''").
		Find(&roster).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load responder roster")
	}
	return roster, nil
}

// rank orders the roster by distance to the incident, nearest first.
// Unparsable coordinates get the sentinel distance so they sort last instead
// of failing the dispatch.
func rank(em *models.Emergency, roster []models.Security) []rankedResponder {
	ranked := make([]rankedResponder, 0, len(roster))
	for _, sec := range roster {
		d := geo.DistanceBetween(em.Latitude, em.Longitude, *sec.CurrentLatitude, *sec.CurrentLongitude)
		ranked = append(ranked, rankedResponder{security: sec, distance: d})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distance < ranked[j].distance
	})
	return ranked
}

// Dispatch picks the nearest responders for the emergency, creates a
// DISPATCHED response per selected responder and sends each a dispatch
// order. Zero eligible responders is a no-op. Notification failures are
// logged and never abort the remaining dispatches.
func (s *DispatchService) Dispatch(ctx context.Context, em *models.Emergency) ([]models.EmergencyResponse, error) {
	if em.Latitude == "" || em.Longitude == "" {
		return nil, nil
	}

	roster, err := s.eligibleResponders(ctx)
	if err != nil {
		return nil, err
	}
	if len(roster) == 0 {
		logger.Info("no eligible responders, dispatch skipped", zap.Uint("emergencyId", em.ID))
		return nil, nil
	}

	ranked := rank(em, roster)
	if len(ranked) > DispatchWidth {
		ranked = ranked[:DispatchWidth]
	}

	created := make([]models.EmergencyResponse, 0, len(ranked))
	for _, r := range ranked {
		sec := r.security

		// Re-dispatch must not duplicate a live engagement.
		var existing int64
		err := s.db.WithContext(ctx).Model(&models.EmergencyResponse{}).
			Where("emergency_id = ? AND security_id = ? AND status IN ?",
				em.ID, sec.ID, models.ResponseActiveStatuses).
			Count(&existing).Error
		if err != nil {
			return created, errors.Wrap(err, "failed to check existing response")
		}
		if existing > 0 {
			logger.Debug("responder already engaged, skipping",
				zap.Uint("emergencyId", em.ID), zap.Uint("securityId", sec.ID))
			continue
		}

		resp := models.EmergencyResponse{
			EmergencyID:  em.ID,
			SecurityID:   sec.ID,
			Status:       models.ResponseStatusDispatched,
			ResponseTime: 0,
		}
		if err := s.db.WithContext(ctx).Create(&resp).Error; err != nil {
			return created, errors.Wrap(err, "failed to create emergency response")
		}
		created = append(created, resp)
		metrics.DispatchesCreated.Inc()

		s.sendDispatchOrder(ctx, em, sec, r.distance)
	}

	logger.Info("dispatch completed",
		zap.Uint("emergencyId", em.ID),
		zap.Int("roster", len(roster)),
		zap.Int("dispatched", len(created)))
	return created, nil
}

func (s *DispatchService) sendDispatchOrder(ctx context.Context, em *models.Emergency, sec models.Security, distanceKm float64) {
	if sec.UserID == 0 {
		return
	}
	_, err := s.notifications.Notify(ctx, sec.UserID, NotificationInput{
		Type:      models.NotificationTypeEmergency,
		Title:     fmt.Sprintf("📢 DISPATCH ORDER - %s", em.Type),
		Message:   fmt.Sprintf("You are dispatched to %s (%.1f km away). Respond immediately.", em.Location, distanceKm),
		Icon:      "siren",
		IconColor: "red",
		Data: models.JSONMap{
			"emergencyId": em.ID,
			"type":        em.Type,
			"severity":    em.Severity,
			"location":    em.Location,
			"latitude":    em.Latitude,
			"longitude":   em.Longitude,
			"distanceKm":  distanceKm,
		},
		RelatedEntityID:   fmt.Sprintf("%d", em.ID),
		RelatedEntityType: "emergency",
	})
	if err != nil {
		logger.Warn("dispatch order notification failed",
			zap.Uint("securityId", sec.ID), zap.Uint("emergencyId", em.ID), zap.Error(err))
	}
}
