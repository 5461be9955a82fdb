package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

func TestNotifyPersistsAndPushes(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	n, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type:    models.NotificationTypeSystem,
		Title:   "Water outage",
		Message: "Maintenance from 10:00 to 14:00",
		Data:    models.JSONMap{"area": "Blok B"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	var stored models.Notification
	require.NoError(t, core.db.First(&stored, "id = ?", n.ID).Error)
	assert.Equal(t, "Water outage", stored.Title)
	assert.Equal(t, "Blok B", stored.Data["area"])
	assert.False(t, stored.IsRead)

	key := strconv.FormatUint(uint64(user.ID), 10)
	require.Equal(t, 1, core.pusher.userPushCount(key))
	assert.Equal(t, websocket.EventNewNotification, core.pusher.userPush[0].Event)
}

func TestNotifyPushFailureIsSwallowed(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	core.pusher.failUsers[strconv.FormatUint(uint64(user.ID), 10)] = true

	n, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type:  models.NotificationTypeSystem,
		Title: "Still delivered durably",
	})
	require.NoError(t, err, "push failure must not surface to the caller")

	var count int64
	require.NoError(t, core.db.Model(&models.Notification{}).
		Where("id = ?", n.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestNotifyBulkPartialFailure(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	users := []*models.User{
		seedUser(t, core.db, "a", "RT 01/RW 01"),
		seedUser(t, core.db, "b", "RT 01/RW 01"),
		seedUser(t, core.db, "c", "RT 01/RW 01"),
	}
	failKey := strconv.FormatUint(uint64(users[1].ID), 10)
	core.pusher.failUsers[failKey] = true

	ids := []uint{users[0].ID, users[1].ID, users[2].ID}
	count, results, err := core.notifications.NotifyBulk(ctx, ids, NotificationInput{
		Type:  models.NotificationTypeAnnouncement,
		Title: "Community meeting",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count, "all rows persist regardless of push failures")
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		require.NotEmpty(t, r.NotificationID)
		if !r.Pushed {
			failed++
			assert.Equal(t, users[1].ID, r.UserID)
			assert.Contains(t, r.Error, "simulated")
		}
	}
	assert.Equal(t, 1, failed)

	// the two healthy recipients still got their pushes
	assert.Equal(t, 1, core.pusher.userPushCount(strconv.FormatUint(uint64(users[0].ID), 10)))
	assert.Equal(t, 1, core.pusher.userPushCount(strconv.FormatUint(uint64(users[2].ID), 10)))

	var persisted int64
	require.NoError(t, core.db.Model(&models.Notification{}).Count(&persisted).Error)
	assert.EqualValues(t, 3, persisted)
}

func TestResolveAudience(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	actor := seedUser(t, core.db, "actor", "RT 05/RW 02")
	in05 := seedUser(t, core.db, "neighbor", "RT 05/RW 02")
	in03 := seedUser(t, core.db, "farther", "RT 03/RW 01")
	inactive := seedUser(t, core.db, "gone", "RT 05/RW 02")
	require.NoError(t, core.db.Model(inactive).Update("is_active", false).Error)

	all, err := core.notifications.ResolveAudience(ctx, AudienceAllResidents, actor.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{in05.ID, in03.ID}, all)

	rt05, err := core.notifications.ResolveAudience(ctx, "RT_05", actor.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{in05.ID}, rt05)

	_, err = core.notifications.ResolveAudience(ctx, "EVERYBODY", actor.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))

	_, err = core.notifications.ResolveAudience(ctx, "RT_", actor.ID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestAnnounceFansOutToAudience(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	actor := seedUser(t, core.db, "rt-head", "RT 05/RW 02")
	seedUser(t, core.db, "n1", "RT 05/RW 02")
	seedUser(t, core.db, "n2", "RT 05/RW 02")

	count, results, err := core.notifications.Announce(ctx, "RT_05", actor.ID, NotificationInput{
		Title:   "Kerja bakti Sunday morning",
		Message: "Bring your own tools",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	assert.Len(t, results, 2)

	var rows []models.Notification
	require.NoError(t, core.db.Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.NotificationTypeAnnouncement, row.Type)
		require.NotNil(t, row.CreatedBy)
		assert.Equal(t, actor.ID, *row.CreatedBy)
		assert.NotEqual(t, actor.ID, row.UserID)
	}
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	var first *models.Notification
	for i := 0; i < 3; i++ {
		n, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
			Type:  models.NotificationTypeSystem,
			Title: "note",
		})
		require.NoError(t, err)
		if first == nil {
			first = n
		}
	}

	count, err := core.notifications.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	require.NoError(t, core.notifications.MarkAsRead(ctx, user.ID, first.ID))
	count, err = core.notifications.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	var read models.Notification
	require.NoError(t, core.db.First(&read, "id = ?", first.ID).Error)
	assert.True(t, read.IsRead)
	assert.NotNil(t, read.ReadAt)

	// a user cannot mark someone else's notification
	other := seedUser(t, core.db, "other", "RT 01/RW 01")
	err = core.notifications.MarkAsRead(ctx, other.ID, first.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	changed, err := core.notifications.MarkAllAsRead(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	count, err = core.notifications.UnreadCount(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestArchiveAndList(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	kept, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type: models.NotificationTypeSystem, Title: "keep me",
	})
	require.NoError(t, err)
	archived, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type: models.NotificationTypeAnnouncement, Title: "archive me",
	})
	require.NoError(t, err)

	require.NoError(t, core.notifications.Archive(ctx, user.ID, archived.ID))

	unarchived := false
	list, err := core.notifications.List(ctx, user.ID, NotificationFilter{Archived: &unarchived})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)

	byType, err := core.notifications.List(ctx, user.ID, NotificationFilter{Type: models.NotificationTypeAnnouncement})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, archived.ID, byType[0].ID)
}

func TestDeleteAndDeleteByRelatedEntity(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	a := seedUser(t, core.db, "a", "RT 01/RW 01")
	b := seedUser(t, core.db, "b", "RT 01/RW 01")

	for _, user := range []*models.User{a, b} {
		_, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
			Type:              models.NotificationTypeEmergency,
			Title:             "tied to incident",
			RelatedEntityID:   "42",
			RelatedEntityType: "emergency",
		})
		require.NoError(t, err)
	}
	loose, err := core.notifications.Notify(ctx, a.ID, NotificationInput{
		Type: models.NotificationTypeSystem, Title: "unrelated",
	})
	require.NoError(t, err)

	removed, err := core.notifications.DeleteByRelatedEntity(ctx, "42", "emergency")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	var remaining int64
	require.NoError(t, core.db.Model(&models.Notification{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)

	require.NoError(t, core.notifications.Delete(ctx, a.ID, loose.ID))
	err = core.notifications.Delete(ctx, a.ID, loose.ID)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestNotificationStats(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	for i := 0; i < 2; i++ {
		_, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
			Type: models.NotificationTypeSystem, Title: "s",
		})
		require.NoError(t, err)
	}
	n, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type: models.NotificationTypeSOSAlert, Title: "sos",
	})
	require.NoError(t, err)
	require.NoError(t, core.notifications.MarkAsRead(ctx, user.ID, n.ID))
	require.NoError(t, core.notifications.Archive(ctx, user.ID, n.ID))

	stats, err := core.notifications.Stats(ctx, user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.Unread)
	assert.EqualValues(t, 1, stats.Archived)
	assert.EqualValues(t, 2, stats.ByType[models.NotificationTypeSystem])
	assert.EqualValues(t, 1, stats.ByType[models.NotificationTypeSOSAlert])
}

func TestPurgeExpired(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	user := seedUser(t, core.db, "resident", "RT 01/RW 01")
	past := time.Now().Add(-time.Hour)
	_, err := core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type: models.NotificationTypeSystem, Title: "stale", ExpiresAt: &past,
	})
	require.NoError(t, err)
	_, err = core.notifications.Notify(ctx, user.ID, NotificationInput{
		Type: models.NotificationTypeSystem, Title: "fresh",
	})
	require.NoError(t, err)

	// expired rows are invisible even before the purge
	list, err := core.notifications.List(ctx, user.ID, NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fresh", list[0].Title)

	purged, err := core.notifications.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)

	var remaining int64
	require.NoError(t, core.db.Model(&models.Notification{}).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
}

func TestBroadcastIsPushOnly(t *testing.T) {
	core := newTestCore(t)

	require.NoError(t, core.notifications.Broadcast(websocket.RoomSecurity, websocket.EventEmergencyAlert,
		map[string]interface{}{"id": 1}))
	require.NoError(t, core.notifications.Broadcast("", websocket.EventEmergencyNew,
		map[string]interface{}{"id": 1}))

	var persisted int64
	require.NoError(t, core.db.Model(&models.Notification{}).Count(&persisted).Error)
	assert.Zero(t, persisted)
	assert.Len(t, core.pusher.roomPush, 1)
	assert.Len(t, core.pusher.broadcast, 1)
}
