package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
)

type EmergencyHandler struct {
	emergencies *service.EmergencyService
}

func NewEmergencyHandler(emergencies *service.EmergencyService) *EmergencyHandler {
	return &EmergencyHandler{emergencies: emergencies}
}

// Create handles an inbound SOS.
func (h *EmergencyHandler) Create(c *gin.Context) {
	var in service.CreateEmergencyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	em, err := h.emergencies.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, em)
}

func (h *EmergencyHandler) GetActive(c *gin.Context) {
	out, err := h.emergencies.GetActive(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *EmergencyHandler) GetAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	out, total, err := h.emergencies.GetAll(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"items": out, "total": total})
}

func (h *EmergencyHandler) GetByID(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	em, err := h.emergencies.GetByID(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, em)
}

func (h *EmergencyHandler) GetByType(c *gin.Context) {
	out, err := h.emergencies.GetByType(c.Request.Context(), c.Param("type"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *EmergencyHandler) GetStats(c *gin.Context) {
	stats, err := h.emergencies.GetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}

func (h *EmergencyHandler) UpdateStatus(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	em, err := h.emergencies.UpdateStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, em)
}

func (h *EmergencyHandler) ToggleNeedVolunteer(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		NeedVolunteer  bool `json:"needVolunteer"`
		VolunteerCount int  `json:"volunteerCount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	em, err := h.emergencies.ToggleNeedVolunteer(c.Request.Context(), id, body.NeedVolunteer, body.VolunteerCount)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, em)
}

func (h *EmergencyHandler) RegisterVolunteer(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		UserID uint `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == 0 {
		fail(c, errors.InvalidRequest("userId is required"))
		return
	}
	v, err := h.emergencies.RegisterVolunteer(c.Request.Context(), id, body.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, v)
}

func (h *EmergencyHandler) UpdateVolunteerStatus(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	v, err := h.emergencies.UpdateVolunteerStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, v)
}

func (h *EmergencyHandler) Resolve(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	em, err := h.emergencies.Resolve(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, em)
}

func (h *EmergencyHandler) Cancel(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	em, err := h.emergencies.Cancel(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, em)
}

type responderActionBody struct {
	SecurityID uint `json:"securityId"`
}

func (h *EmergencyHandler) Accept(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body responderActionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.SecurityID == 0 {
		fail(c, errors.InvalidRequest("securityId is required"))
		return
	}
	resp, err := h.emergencies.Accept(c.Request.Context(), body.SecurityID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *EmergencyHandler) Arrive(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body responderActionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.SecurityID == 0 {
		fail(c, errors.InvalidRequest("securityId is required"))
		return
	}
	resp, err := h.emergencies.Arrive(c.Request.Context(), body.SecurityID, id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *EmergencyHandler) Complete(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		SecurityID  uint   `json:"securityId"`
		ActionTaken string `json:"actionTaken"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SecurityID == 0 {
		fail(c, errors.InvalidRequest("securityId is required"))
		return
	}
	resp, err := h.emergencies.Complete(c.Request.Context(), body.SecurityID, id, body.ActionTaken, body.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, resp)
}

func (h *EmergencyHandler) GetSecurityEmergencies(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	out, err := h.emergencies.GetSecurityEmergencies(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, out)
}

func (h *EmergencyHandler) GetSecurityStats(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	stats, err := h.emergencies.GetSecurityStats(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stats)
}
