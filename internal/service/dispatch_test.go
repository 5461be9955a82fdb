package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
)

func activeEmergency(t *testing.T, core *testCore, lat, lon string) *models.Emergency {
	t.Helper()
	em := &models.Emergency{
		Type:     models.EmergencyTypeFire,
		Severity: models.SeverityMedium,
		Location: "Blok C",
		Latitude: lat, Longitude: lon,
		Status: models.EmergencyStatusActive,
	}
	require.NoError(t, core.db.Create(em).Error)
	return em
}

func TestDispatchSelectsThreeNearestAscending(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	// responders roughly 1.1, 2.2, 3.3, 4.4 and 5.5 km north of the incident
	for _, lat := range []string{"0.05", "0.03", "0.01", "0.04", "0.02"} {
		seedSecurity(t, core.db, "guard-"+lat, lat, "0", true)
	}

	em := activeEmergency(t, core, "0", "0")
	created, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	require.Len(t, created, 3)

	var ordered []models.Security
	for _, resp := range created {
		assert.Equal(t, models.ResponseStatusDispatched, resp.Status)
		assert.Zero(t, resp.ResponseTime)
		var sec models.Security
		require.NoError(t, core.db.First(&sec, resp.SecurityID).Error)
		ordered = append(ordered, sec)
	}
	// creation order follows distance order, nearest first
	assert.Equal(t, "guard-0.01", ordered[0].Nama)
	assert.Equal(t, "guard-0.02", ordered[1].Nama)
	assert.Equal(t, "guard-0.03", ordered[2].Nama)

	var total int64
	require.NoError(t, core.db.Model(&models.EmergencyResponse{}).
		Where("emergency_id = ?", em.ID).Count(&total).Error)
	assert.EqualValues(t, 3, total)
}

func TestDispatchUnparsableCoordinatesSortLast(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	seedSecurity(t, core.db, "near-a", "0.01", "0", true)
	seedSecurity(t, core.db, "near-b", "0.02", "0", true)
	seedSecurity(t, core.db, "near-c", "0.03", "0", true)
	broken := seedSecurity(t, core.db, "broken-gps", "not-a-number", "0", true)

	em := activeEmergency(t, core, "0", "0")
	created, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	require.Len(t, created, 3)

	for _, resp := range created {
		assert.NotEqual(t, broken.ID, resp.SecurityID)
	}
}

func TestDispatchWithEmptyRosterIsNoOp(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	// off-duty and suspended responders are not eligible
	seedSecurity(t, core.db, "off-duty", "0.01", "0", false)
	suspended := seedSecurity(t, core.db, "suspended", "0.01", "0", true)
	require.NoError(t, core.db.Model(suspended).Update("status", models.SecurityStatusSuspended).Error)

	em := activeEmergency(t, core, "0", "0")
	created, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	assert.Empty(t, created)

	var total int64
	require.NoError(t, core.db.Model(&models.EmergencyResponse{}).Count(&total).Error)
	assert.Zero(t, total)
}

func TestDispatchWithoutCoordinatesIsNoOp(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	seedSecurity(t, core.db, "guard", "0.01", "0", true)
	em := activeEmergency(t, core, "", "")

	created, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestRedispatchDoesNotDuplicateLiveResponse(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	sec := seedSecurity(t, core.db, "guard", "0.01", "0", true)
	em := activeEmergency(t, core, "0", "0")

	first, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, sec.ID, first[0].SecurityID)

	second, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)
	assert.Empty(t, second)

	var live int64
	require.NoError(t, core.db.Model(&models.EmergencyResponse{}).
		Where("emergency_id = ? AND security_id = ? AND status IN ?",
			em.ID, sec.ID, models.ResponseActiveStatuses).
		Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestDispatchSendsDispatchOrders(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	sec := seedSecurity(t, core.db, "guard", "0.01", "0", true)
	em := activeEmergency(t, core, "0", "0")

	_, err := core.dispatch.Dispatch(ctx, em)
	require.NoError(t, err)

	var orders []models.Notification
	require.NoError(t, core.db.
		Where("user_id = ? AND type = ?", sec.UserID, models.NotificationTypeEmergency).
		Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Contains(t, orders[0].Title, "DISPATCH ORDER")
	assert.Equal(t, "emergency", orders[0].RelatedEntityType)
}
