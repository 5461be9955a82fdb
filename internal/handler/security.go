package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nabilkencana/Warga-Kita-Backend/internal/service"
	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
)

type SecurityHandler struct {
	securities *service.SecurityService
}

func NewSecurityHandler(securities *service.SecurityService) *SecurityHandler {
	return &SecurityHandler{securities: securities}
}

func (h *SecurityHandler) CheckIn(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	}
	_ = c.ShouldBindJSON(&body) // body is optional
	sec, err := h.securities.CheckIn(c.Request.Context(), id, body.Latitude, body.Longitude)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sec)
}

func (h *SecurityHandler) CheckOut(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	sec, err := h.securities.CheckOut(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sec)
}

func (h *SecurityHandler) UpdateLocation(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, errors.InvalidRequest("invalid request body: %v", err))
		return
	}
	sec, err := h.securities.UpdateLocation(c.Request.Context(), id, body.Latitude, body.Longitude)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, sec)
}

func (h *SecurityHandler) SetDeviceToken(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		fail(c, errors.InvalidRequest("token is required"))
		return
	}
	if err := h.securities.SetDeviceToken(c.Request.Context(), id, body.Token); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *SecurityHandler) ActiveRoster(c *gin.Context) {
	roster, err := h.securities.ActiveRoster(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, roster)
}

func (h *SecurityHandler) Logs(c *gin.Context) {
	id, okParam := uintParam(c, "id")
	if !okParam {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.securities.Logs(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, logs)
}
