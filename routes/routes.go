package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/quangdao0809/ganh-hat-loto/controllers"
	"github.com/quangdao0809/ganh-hat-loto/services"
)

func SetupRoutes(r *gin.Engine, reg *services.Registry) {
	rooms := &controllers.Rooms{Registry: reg}

	api := r.Group("/api")
	api.POST("/rooms", rooms.Create) // Create room, returns host playerId
	api.GET("/rooms/:code", rooms.Get)
}
