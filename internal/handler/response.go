// Package handler exposes the coordination core over HTTP. Authentication
// and session handling live in the gateway in front of this service; user
// identity arrives as a trusted parameter.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nabilkencana/Warga-Kita-Backend/pkg/errors"
)

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), gin.H{"success": false, "error": errors.GetMessage(err)})
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		fail(c, errors.InvalidRequest("invalid %s", name))
		return 0, false
	}
	return uint(v), true
}

func uintQuery(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil {
		fail(c, errors.InvalidRequest("%s query parameter is required", name))
		return 0, false
	}
	return uint(v), true
}
