package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/services"
)

// Rooms exposes the small REST side of the gateway: create a room before
// the host's websocket attaches, and look one up for the join page.
type Rooms struct {
	Registry *services.Registry
}

type createRoomRequest struct {
	Nickname string          `json:"nickname" binding:"required"`
	Settings models.Settings `json:"settings"`
}

// statusFor maps engine errors to HTTP statuses, reusing the wire codes the
// websocket error path emits.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrPlayerNotFound),
		errors.Is(err, services.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrStateConflict),
		errors.Is(err, services.ErrRoomFull),
		errors.Is(err, services.ErrTicketCapReached):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Create handles POST /api/rooms. The host then connects over the websocket
// with room.rejoin using the returned playerId.
func (rc *Rooms) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, host, err := rc.Registry.Create(c.Request.Context(), req.Nickname, req.Settings)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": services.ErrorCode(err)})
		return
	}

	state, err := rc.Registry.State(c.Request.Context(), room.Code())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": state, "player": host})
}

// Get handles GET /api/rooms/:code.
func (rc *Rooms) Get(c *gin.Context) {
	state, err := rc.Registry.State(c.Request.Context(), c.Param("code"))
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, state)
}
