package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/models"
	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/util"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := util.OpenDatabase(&gorm.Config{}, "sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	notifications := service.NewNotificationService(db, nil, nil)
	dispatch := service.NewDispatchService(db, notifications)
	alarm := service.NewAlarmService(db, notifications, dispatch, nil)
	deps := Deps{
		Emergencies:   service.NewEmergencyService(db, notifications, alarm),
		Securities:    service.NewSecurityService(db, nil),
		Notifications: notifications,
		SOSRate:       "100-S",
	}
	return NewRouter(deps), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateAndFetchEmergency(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/emergencies", gin.H{
		"type":     models.EmergencyTypeFire,
		"severity": models.SeverityHigh,
		"location": "Blok A",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var createResp struct {
		Data models.Emergency `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	require.NotZero(t, createResp.Data.ID)

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/emergencies/%d", createResp.Data.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/emergencies/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blok A")
}

func TestCreateEmergencyValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/emergencies", gin.H{"severity": "HIGH"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorStatusMapping(t *testing.T) {
	router, _ := newTestRouter(t)

	// missing emergency -> 404
	w := doJSON(t, router, http.MethodGet, "/api/emergencies/9999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// illegal transition -> 400
	created := doJSON(t, router, http.MethodPost, "/api/emergencies", gin.H{"type": "LAINNYA"})
	require.Equal(t, http.StatusCreated, created.Code)
	var resp struct {
		Data models.Emergency `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	w = doJSON(t, router, http.MethodPatch,
		fmt.Sprintf("/api/emergencies/%d/status", resp.Data.ID), gin.H{"status": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationEndpoints(t *testing.T) {
	router, db := newTestRouter(t)

	user := &models.User{NamaLengkap: "resident", Email: "r@example.com", RtRw: "RT 01/RW 01", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	w := doJSON(t, router, http.MethodGet, "/api/notifications/unread-count", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "userId is required")

	w = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/notifications/unread-count?userId=%d", user.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unread":0`)

	w = doJSON(t, router, http.MethodPost, "/api/announcements", gin.H{
		"audience": "EVERYBODY",
		"actorId":  user.ID,
		"title":    "hello",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown audience is rejected")
}

func TestSecurityEndpoints(t *testing.T) {
	router, db := newTestRouter(t)

	sec := &models.Security{Nama: "guard", Status: models.SecurityStatusActive}
	require.NoError(t, db.Create(sec).Error)

	w := doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/securities/%d/check-in", sec.ID), gin.H{
			"latitude": "-6.20", "longitude": "106.81",
		})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/securities/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guard")
}
