package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/cache"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/util"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.OpenDatabase(&gorm.Config{}, "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

type recordedPush struct {
	Target string
	Event  string
	Data   interface{}
}

// fakePusher records pushes and can be told to fail for specific users.
type fakePusher struct {
	mu        sync.Mutex
	userPush  []recordedPush
	roomPush  []recordedPush
	broadcast []recordedPush
	failUsers map[string]bool
}

func newFakePusher() *fakePusher {
	return &fakePusher{failUsers: make(map[string]bool)}
}

func (f *fakePusher) PushToUser(userID, event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUsers[userID] {
		return fmt.Errorf("simulated delivery failure for user %s", userID)
	}
	f.userPush = append(f.userPush, recordedPush{Target: userID, Event: event, Data: data})
	return nil
}

func (f *fakePusher) PushToRoom(room, event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roomPush = append(f.roomPush, recordedPush{Target: room, Event: event, Data: data})
	return nil
}

func (f *fakePusher) Broadcast(event string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcast = append(f.broadcast, recordedPush{Event: event, Data: data})
	return nil
}

func (f *fakePusher) userPushCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.userPush {
		if p.Target == userID {
			n++
		}
	}
	return n
}

type testCore struct {
	db            *gorm.DB
	pusher        *fakePusher
	notifications *NotificationService
	dispatch      *DispatchService
	alarm         *AlarmService
	emergencies   *EmergencyService
	securities    *SecurityService
}

func newTestCore(t *testing.T) *testCore {
	t.Helper()
	db := newTestDB(t)
	pusher := newFakePusher()

	c, err := cache.NewCache(cache.Config{Type: "local"})
	require.NoError(t, err)

	notifications := NewNotificationService(db, pusher, c)
	dispatch := NewDispatchService(db, notifications)
	alarm := NewAlarmService(db, notifications, dispatch, pusher)
	return &testCore{
		db:            db,
		pusher:        pusher,
		notifications: notifications,
		dispatch:      dispatch,
		alarm:         alarm,
		emergencies:   NewEmergencyService(db, notifications, alarm),
		securities:    NewSecurityService(db, pusher),
	}
}

func seedUser(t *testing.T, db *gorm.DB, name, rtRw string) *models.User {
	t.Helper()
	u := &models.User{NamaLengkap: name, Email: name + "@example.com", RtRw: rtRw, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedSecurity(t *testing.T, db *gorm.DB, name string, lat, lon string, onDuty bool) *models.Security {
	t.Helper()
	u := seedUser(t, db, name, "RT 01/RW 01")
	sec := &models.Security{
		Nama:     name,
		UserID:   u.ID,
		Status:   models.SecurityStatusActive,
		IsOnDuty: onDuty,
	}
	if lat != "" {
		sec.CurrentLatitude = &lat
	}
	if lon != "" {
		sec.CurrentLongitude = &lon
	}
	require.NoError(t, db.Create(sec).Error)
	return sec
}
