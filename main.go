package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/quangdao0809/ganh-hat-loto/config"
	"github.com/quangdao0809/ganh-hat-loto/routes"
	"github.com/quangdao0809/ganh-hat-loto/services"
	"github.com/quangdao0809/ganh-hat-loto/store"
	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

// setupRouter initializes Gin routes and middleware
func setupRouter(cfg config.Config, reg *services.Registry) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, reg)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	// WebSocket gateway endpoint
	gw := services.NewGateway(reg)
	r.GET("/ws", gw.HandleWebSocket)

	return r
}

func main() {
	cfg := config.Load()

	db := config.SetupDatabase(cfg.DatabaseURL)
	rdb := config.SetupRedis(cfg.RedisURL)

	st := store.NewCachedStore(store.NewGormStore(db), rdb, cfg.CacheTTL)
	bus := services.NewRedisBus(rdb)
	reg := services.NewRegistry(st, bus, cfg.GracePeriod)
	defer reg.Shutdown()
	defer logger.Sync()

	router := setupRouter(cfg, reg)

	log.Printf("🚀 Loto server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("[FATAL] Failed to start server: %v", err)
	}
}
