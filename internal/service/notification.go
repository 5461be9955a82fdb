package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/cache"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/logger"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/metrics"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

// Audience tags for announcement-style fan-out.
const (
	AudienceAllResidents = "ALL_RESIDENTS"
	AudienceRTPrefix     = "RT_"
)

const unreadCacheTTL = 5 * time.Minute

func unreadCacheKey(userID uint) string {
	return "notification:unread:" + strconv.FormatUint(uint64(userID), 10)
}

// PushResult records the live-delivery outcome for one recipient of a bulk
// notification. The durable row exists regardless of Pushed.
type PushResult struct {
	UserID         uint   `json:"userId"`
	NotificationID string `json:"notificationId"`
	Pushed         bool   `json:"pushed"`
	Error          string `json:"error,omitempty"`
}

// NotificationInput is the caller-facing payload for creating notifications.
type NotificationInput struct {
	Type              string
	Title             string
	Message           string
	Icon              string
	IconColor         string
	Data              models.JSONMap
	RelatedEntityID   string
	RelatedEntityType string
	CreatedBy         *uint
	ExpiresAt         *time.Time
}

// NotificationFilter narrows List results.
type NotificationFilter struct {
	Type       string
	UnreadOnly bool
	Archived   *bool
	Limit      int
	Offset     int
}

// NotificationStats summarizes one user's notifications.
type NotificationStats struct {
	Total    int64            `json:"total"`
	Unread   int64            `json:"unread"`
	Archived int64            `json:"archived"`
	ByType   map[string]int64 `json:"byType"`
}

// NotificationService persists notification rows and pushes them live. The
// durable write is the correctness boundary; push failures are counted,
// logged and swallowed.
type NotificationService struct {
	db     *gorm.DB
	pusher Pusher
	cache  cache.Cache
}

func NewNotificationService(db *gorm.DB, pusher Pusher, c cache.Cache) *NotificationService {
	if pusher == nil {
		pusher = NopPusher{}
	}
	return &NotificationService{db: db, pusher: pusher, cache: c}
}

func (s *NotificationService) buildRow(userID uint, in NotificationInput) *models.Notification {
	return &models.Notification{
		UserID:            userID,
		Type:              in.Type,
		Title:             in.Title,
		Message:           in.Message,
		Icon:              in.Icon,
		IconColor:         in.IconColor,
		Data:              in.Data,
		RelatedEntityID:   in.RelatedEntityID,
		RelatedEntityType: in.RelatedEntityType,
		CreatedBy:         in.CreatedBy,
		ExpiresAt:         in.ExpiresAt,
	}
}

// Notify persists one notification and attempts a live push to all of the
// recipient's connections. The error return covers only the durable write.
func (s *NotificationService) Notify(ctx context.Context, userID uint, in NotificationInput) (*models.Notification, error) {
	if in.Type == "" || in.Title == "" {
		return nil, errors.InvalidRequest("notification type and title are required")
	}

	n := s.buildRow(userID, in)
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, errors.Wrap(err, "failed to create notification")
	}
	metrics.NotificationsPersisted.WithLabelValues(n.Type).Inc()
	s.invalidateUnread(ctx, userID)

	s.push(userID, n)
	return n, nil
}

// NotifyBulk persists one row per recipient in a single batch, then pushes
// to each recipient individually. One recipient's push failure never aborts
// delivery to the rest; the per-recipient outcome is returned so callers can
// inspect partial failure instead of relying on logs.
func (s *NotificationService) NotifyBulk(ctx context.Context, userIDs []uint, in NotificationInput) (int64, []PushResult, error) {
	if in.Type == "" || in.Title == "" {
		return 0, nil, errors.InvalidRequest("notification type and title are required")
	}
	if len(userIDs) == 0 {
		return 0, nil, nil
	}

	rows := make([]*models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, s.buildRow(userID, in))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return 0, nil, errors.Wrap(err, "failed to create notifications")
	}
	metrics.NotificationsPersisted.WithLabelValues(in.Type).Add(float64(len(rows)))

	results := make([]PushResult, 0, len(rows))
	for _, n := range rows {
		s.invalidateUnread(ctx, n.UserID)
		result := PushResult{UserID: n.UserID, NotificationID: n.ID, Pushed: true}
		if err := s.pushErr(n.UserID, n); err != nil {
			result.Pushed = false
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return int64(len(rows)), results, nil
}

// Broadcast is push-only delivery to a room. Nothing is persisted; use it
// for ambient alerts where per-recipient durability is not needed.
func (s *NotificationService) Broadcast(room, event string, data interface{}) error {
	var err error
	if room == "" {
		err = s.pusher.Broadcast(event, data)
	} else {
		err = s.pusher.PushToRoom(room, event, data)
	}
	if err != nil {
		metrics.PushFailures.Inc()
		logger.Warn("broadcast push failed",
			zap.String("room", room), zap.String("event", event), zap.Error(err))
		return err
	}
	metrics.NotificationsPushed.Inc()
	return nil
}

// ResolveAudience expands an audience tag into recipient user ids, excluding
// the acting user. Unknown tags are rejected rather than silently expanded
// to everyone.
func (s *NotificationService) ResolveAudience(ctx context.Context, audience string, actorID uint) ([]uint, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	switch {
	case audience == AudienceAllResidents:
		// no extra filter
	case strings.HasPrefix(audience, AudienceRTPrefix):
		rt := strings.TrimPrefix(audience, AudienceRTPrefix)
		if rt == "" {
			return nil, errors.InvalidRequest("audience %q is missing the RT number", audience)
		}
		q = q.Where("rt_rw LIKE ?", "%"+rt+"%")
	default:
		return nil, errors.InvalidRequest("unknown audience %q", audience)
	}
	if actorID != 0 {
		q = q.Where("id <> ?", actorID)
	}

	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "failed to resolve audience")
	}
	return ids, nil
}

// Announce fans an announcement out to an audience: durable rows plus pushes.
func (s *NotificationService) Announce(ctx context.Context, audience string, actorID uint, in NotificationInput) (int64, []PushResult, error) {
	recipients, err := s.ResolveAudience(ctx, audience, actorID)
	if err != nil {
		return 0, nil, err
	}
	if in.Type == "" {
		in.Type = models.NotificationTypeAnnouncement
	}
	if in.CreatedBy == nil && actorID != 0 {
		in.CreatedBy = &actorID
	}
	return s.NotifyBulk(ctx, recipients, in)
}

// List returns a user's notifications, newest first. Expired rows are
// filtered out even before the purge job removes them.
func (s *NotificationService) List(ctx context.Context, userID uint, filter NotificationFilter) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("expires_at IS NULL OR expires_at > ?", time.Now())

	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if filter.Archived != nil {
		q = q.Where("is_archived = ?", *filter.Archived)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []models.Notification
	err := q.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	return out, nil
}

// UnreadCount returns the number of unread, unarchived notifications,
// serving repeat reads from cache.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	key := unreadCacheKey(userID)
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			if count, ok := v.(int64); ok {
				return count, nil
			}
		}
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ? AND is_archived = ?", userID, false, false).
		Where("expires_at IS NULL OR expires_at > ?", time.Now()).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, count, unreadCacheTTL)
	}
	return count, nil
}

// MarkAsRead marks one notification read. NotFound when the row does not
// belong to the user.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID uint, id string) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to mark notification read")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("notification %s not found", id)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// MarkManyAsRead marks a set of the user's notifications read and returns
// how many rows changed.
func (s *NotificationService) MarkManyAsRead(ctx context.Context, userID uint, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to mark notifications read")
	}
	s.invalidateUnread(ctx, userID)
	return res.RowsAffected, nil
}

// MarkAllAsRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to mark all notifications read")
	}
	s.invalidateUnread(ctx, userID)
	return res.RowsAffected, nil
}

// Archive hides a notification from the default list without deleting it.
func (s *NotificationService) Archive(ctx context.Context, userID uint, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_archived", true)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to archive notification")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("notification %s not found", id)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// Delete removes one notification owned by the user.
func (s *NotificationService) Delete(ctx context.Context, userID uint, id string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to delete notification")
	}
	if res.RowsAffected == 0 {
		return errors.NotFound("notification %s not found", id)
	}
	s.invalidateUnread(ctx, userID)
	return nil
}

// DeleteByRelatedEntity removes every notification that points at one
// entity, across all recipients. Used when the entity itself goes away.
func (s *NotificationService) DeleteByRelatedEntity(ctx context.Context, entityID, entityType string) (int64, error) {
	if entityID == "" || entityType == "" {
		return 0, errors.InvalidRequest("related entity id and type are required")
	}
	res := s.db.WithContext(ctx).
		Where("related_entity_id = ? AND related_entity_type = ?", entityID, entityType).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to delete related notifications")
	}
	return res.RowsAffected, nil
}

// Stats aggregates a user's notification counts, grouped by type.
func (s *NotificationService) Stats(ctx context.Context, userID uint) (*NotificationStats, error) {
	stats := &NotificationStats{ByType: make(map[string]int64)}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count notifications")
	}
	if err := base().Where("is_read = ?", false).Count(&stats.Unread).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count unread notifications")
	}
	if err := base().Where("is_archived = ?", true).Count(&stats.Archived).Error; err != nil {
		return nil, errors.Wrap(err, "failed to count archived notifications")
	}

	var grouped []struct {
		Type  string
		Count int64
	}
	err := base().Select("type, COUNT(*) AS count").Group("type").Scan(&grouped).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to group notifications by type")
	}
	for _, g := range grouped {
		stats.ByType[g.Type] = g.Count
	}
	return stats, nil
}

// PurgeExpired deletes notifications past their expiry. Wired into the cron
// scheduler.
func (s *NotificationService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", time.Now()).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "failed to purge expired notifications")
	}
	if res.RowsAffected > 0 {
		logger.Info("purged expired notifications", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func (s *NotificationService) push(userID uint, n *models.Notification) {
	if err := s.pushErr(userID, n); err != nil {
		logger.Warn("notification push failed",
			zap.Uint("userId", userID), zap.String("notificationId", n.ID), zap.Error(err))
	}
}

func (s *NotificationService) pushErr(userID uint, n *models.Notification) error {
	err := s.pusher.PushToUser(userKey(userID), websocket.EventNewNotification, n)
	if err != nil {
		metrics.PushFailures.Inc()
		return err
	}
	metrics.NotificationsPushed.Inc()
	return nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userID uint) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, unreadCacheKey(userID))
	}
}

func userKey(userID uint) string {
	return fmt.Sprintf("%d", userID)
}
