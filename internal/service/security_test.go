package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/websocket"
)

func TestCheckInAndOut(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	guard := seedSecurity(t, core.db, "guard", "", "", false)

	checkedIn, err := core.securities.CheckIn(ctx, guard.ID, "-6.20", "106.81")
	require.NoError(t, err)
	assert.True(t, checkedIn.IsOnDuty)
	require.NotNil(t, checkedIn.LastCheckIn)

	var stored models.Security
	require.NoError(t, core.db.First(&stored, guard.ID).Error)
	require.NotNil(t, stored.CurrentLatitude)
	assert.Equal(t, "-6.20", *stored.CurrentLatitude)

	roster, err := core.securities.ActiveRoster(ctx)
	require.NoError(t, err)
	assert.Len(t, roster, 1)

	checkedOut, err := core.securities.CheckOut(ctx, guard.ID)
	require.NoError(t, err)
	assert.False(t, checkedOut.IsOnDuty)
	require.NotNil(t, checkedOut.LastCheckOut)

	roster, err = core.securities.ActiveRoster(ctx)
	require.NoError(t, err)
	assert.Empty(t, roster)

	logs, err := core.securities.Logs(ctx, guard.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.SecurityActionCheckOut, logs[0].Action)
	assert.Equal(t, models.SecurityActionCheckIn, logs[1].Action)
}

func TestCheckInRequiresActiveStatus(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	guard := seedSecurity(t, core.db, "guard", "", "", false)
	require.NoError(t, core.db.Model(guard).Update("status", models.SecurityStatusSuspended).Error)

	_, err := core.securities.CheckIn(ctx, guard.ID, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))

	_, err = core.securities.CheckIn(ctx, 9999, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateLocationRebroadcasts(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	guard := seedSecurity(t, core.db, "guard", "0", "0", true)

	updated, err := core.securities.UpdateLocation(ctx, guard.ID, "-6.21", "106.82")
	require.NoError(t, err)
	assert.Equal(t, "-6.21", *updated.CurrentLatitude)

	require.Len(t, core.pusher.roomPush, 1)
	assert.Equal(t, websocket.RoomSecurity, core.pusher.roomPush[0].Target)
	assert.Equal(t, websocket.EventSecurityLocation, core.pusher.roomPush[0].Event)

	_, err = core.securities.UpdateLocation(ctx, guard.ID, "", "")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequest(err))
}

func TestSetDeviceToken(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	guard := seedSecurity(t, core.db, "guard", "", "", false)
	require.NoError(t, core.securities.SetDeviceToken(ctx, guard.ID, "fcm-token-abc"))

	var stored models.Security
	require.NoError(t, core.db.First(&stored, guard.ID).Error)
	assert.Equal(t, "fcm-token-abc", stored.DeviceToken)

	err := core.securities.SetDeviceToken(ctx, 9999, "token")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
